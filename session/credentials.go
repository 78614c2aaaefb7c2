package session

// Credentials holds the client id/secret pair used for the client-credentials
// exchange. The pair is immutable for the lifetime of the process and the
// secret is excluded from all string representations.
type Credentials struct {
	clientID string
	secret   string
}

// NewCredentials creates an immutable credential pair.
func NewCredentials(clientID, secret string) Credentials {
	return Credentials{clientID: clientID, secret: secret}
}

// ClientID returns the client identifier.
func (c Credentials) ClientID() string {
	return c.clientID
}

// IsZero reports whether no credentials were provided.
func (c Credentials) IsZero() bool {
	return c.clientID == "" && c.secret == ""
}

// String returns a redacted representation safe for logging.
func (c Credentials) String() string {
	return "credentials(" + c.clientID + ", [REDACTED])"
}

// GoString returns a redacted representation for %#v formatting.
func (c Credentials) GoString() string {
	return c.String()
}

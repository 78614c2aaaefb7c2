package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/querybridge/observe"
)

// loginPath is the backend's client-credentials exchange endpoint.
const loginPath = "/api/secure/client/user-login"

// accessTokenCookie is the cookie carrying the bearer token on a successful
// exchange.
const accessTokenCookie = "access_token"

// Config configures the session Manager.
type Config struct {
	// BaseURL is the backend base URL (e.g. https://preview.lumenore.com).
	BaseURL string

	// Credentials is the client id/secret pair for the exchange.
	Credentials Credentials

	// StaticToken is a pre-issued bearer token. When set, the exchange is
	// never performed and the token is used as-is for every request.
	StaticToken string

	// DefaultTTL is the assumed token lifetime when the token carries no
	// usable expiry claim. Default: 30 minutes.
	DefaultTTL time.Duration

	// SkewMargin is subtracted from the token expiry to absorb clock skew
	// between this process and the backend. Default: 30 seconds.
	SkewMargin time.Duration

	// HTTPClient is the client used for the exchange. If nil, a default
	// client with a 30s timeout is used.
	HTTPClient *http.Client

	// Logger receives refresh lifecycle events. If nil, logging is disabled.
	Logger observe.Logger

	// Metrics records refresh outcomes. If nil, metrics are disabled.
	Metrics observe.Metrics
}

// current is the shared session state: one instance per Manager, mutated only
// under the Manager's lock.
type current struct {
	token     string
	expiresAt time.Time
	cookies   []*http.Cookie
}

// Manager owns the process-wide session. It is safe for concurrent use; all
// refreshes go through a singleflight group so at most one exchange is in
// flight at any time.
type Manager struct {
	cfg    Config
	client *http.Client

	mu  sync.RWMutex
	cur current

	group singleflight.Group
}

// NewManager creates a session manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("session: base URL is required")
	}
	if cfg.StaticToken == "" && cfg.Credentials.IsZero() {
		return nil, ErrMissingCredentials
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Minute
	}
	if cfg.SkewMargin <= 0 {
		cfg.SkewMargin = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}

	return &Manager{
		cfg:    cfg,
		client: client,
	}, nil
}

// Token returns a usable bearer token, performing the client-credentials
// exchange if the session is uninitialized or past its expiry (minus the skew
// margin). Concurrent callers needing a refresh share a single exchange and
// its outcome, success or failure.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m.cfg.StaticToken != "" {
		return m.cfg.StaticToken, nil
	}

	if token, ok := m.validToken(); ok {
		return token, nil
	}

	v, err, _ := m.group.Do("refresh", func() (any, error) {
		// A refresh that completed between the validity check and joining
		// the group already produced a usable token.
		if token, ok := m.validToken(); ok {
			return token, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cookies returns a copy of the session cookies acquired during the last
// successful exchange.
func (m *Manager) Cookies() []*http.Cookie {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cur.cookies) == 0 {
		return nil
	}
	out := make([]*http.Cookie, len(m.cur.cookies))
	copy(out, m.cur.cookies)
	return out
}

// Invalidate discards the current session so the next Token call performs a
// fresh exchange. Called by the dispatcher when the backend rejects an
// apparently valid token.
func (m *Manager) Invalidate() {
	if m.cfg.StaticToken != "" {
		return
	}
	m.mu.Lock()
	m.cur = current{}
	m.mu.Unlock()
	m.cfg.Logger.Debug(context.Background(), "session invalidated")
}

func (m *Manager) validToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur.token == "" {
		return "", false
	}
	if time.Now().After(m.cur.expiresAt.Add(-m.cfg.SkewMargin)) {
		return "", false
	}
	return m.cur.token, true
}

// refresh performs the exchange and installs the new session state. A failed
// refresh leaves the manager empty so the next call retries acquisition.
func (m *Manager) refresh(ctx context.Context) (string, error) {
	token, err := m.exchange(ctx)
	m.cfg.Metrics.RecordRefresh(ctx, err)
	if err != nil {
		m.cfg.Logger.Warn(ctx, "credential exchange failed", observe.Field{Key: "error", Value: err.Error()})
		return "", err
	}
	m.cfg.Logger.Info(ctx, "credential exchange succeeded",
		observe.Field{Key: "client_id", Value: m.cfg.Credentials.ClientID()})
	return token, nil
}

// exchangeRequest is the wire shape of the client-credentials exchange.
type exchangeRequest struct {
	Data struct {
		ClientID string `json:"clientId"`
		Secret   string `json:"secret"`
	} `json:"data"`
}

func (m *Manager) exchange(ctx context.Context) (string, error) {
	var body exchangeRequest
	body.Data.ClientID = m.cfg.Credentials.clientID
	body.Data.Secret = m.cfg.Credentials.secret

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &ExchangeError{Message: "encode request", Err: err}
	}

	url := strings.TrimRight(m.cfg.BaseURL, "/") + loginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &ExchangeError{Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &ExchangeError{Message: "network error", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &ExchangeError{Status: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == accessTokenCookie {
			token = c.Value
			break
		}
	}
	if token == "" {
		return "", &ExchangeError{Status: resp.StatusCode, Message: "no access_token cookie in response"}
	}

	expiresAt, ok := tokenExpiry(token)
	if !ok {
		expiresAt = time.Now().Add(m.cfg.DefaultTTL)
	}

	m.mu.Lock()
	m.cur = current{
		token:     token,
		expiresAt: expiresAt,
		cookies:   resp.Cookies(),
	}
	m.mu.Unlock()

	return token, nil
}

// readErrorBody extracts a short diagnostic from an exchange failure body.
// Token and credential material never appears in exchange error responses,
// but the body is still capped to keep messages bounded.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return "no response body"
	}

	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(bytes.TrimSpace(data))
}

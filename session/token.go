package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry extracts the expiry time from the backend-issued access token.
//
// The token is a JWT delivered in a cookie; it is parsed without signature
// verification because this process never trusts its contents. The backend
// validates the signature on every request; only the exp claim is read here,
// to schedule proactive refreshes.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

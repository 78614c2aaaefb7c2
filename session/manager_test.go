package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newExchangeServer returns a test server that answers the login endpoint
// with an access_token cookie and counts exchanges.
func newExchangeServer(t *testing.T, token string, count *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != loginPath {
			t.Errorf("path = %v, want %v", r.URL.Path, loginPath)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %v, want POST", r.Method)
		}
		count.Add(1)

		http.SetCookie(w, &http.Cookie{Name: accessTokenCookie, Value: token})
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
	}))
}

// signedToken builds a JWT with the given expiry for exchange responses.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "client123",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newTestManager(t *testing.T, baseURL string) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		BaseURL:     baseURL,
		Credentials: NewCredentials("client123", "secret456"),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid credentials",
			cfg:  Config{BaseURL: "https://example.com", Credentials: NewCredentials("id", "sec")},
		},
		{
			name: "static token only",
			cfg:  Config{BaseURL: "https://example.com", StaticToken: "tok"},
		},
		{
			name:    "missing base URL",
			cfg:     Config{Credentials: NewCredentials("id", "sec")},
			wantErr: errors.New("session: base URL is required"),
		},
		{
			name:    "no credentials at all",
			cfg:     Config{BaseURL: "https://example.com"},
			wantErr: ErrMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewManager() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr.Error() {
				t.Errorf("NewManager() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestManager_Token_Exchange(t *testing.T) {
	var count atomic.Int64
	want := signedToken(t, time.Now().Add(time.Hour))
	server := newExchangeServer(t, want, &count)
	defer server.Close()

	m := newTestManager(t, server.URL)

	got, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != want {
		t.Errorf("Token() = %q, want %q", got, want)
	}
	if count.Load() != 1 {
		t.Errorf("exchange count = %d, want 1", count.Load())
	}

	// A second call reuses the valid token.
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() second call error = %v", err)
	}
	if count.Load() != 1 {
		t.Errorf("exchange count after reuse = %d, want 1", count.Load())
	}

	cookies := m.Cookies()
	if len(cookies) != 2 {
		t.Fatalf("Cookies() returned %d cookies, want 2", len(cookies))
	}
}

func TestManager_Token_SingleFlight(t *testing.T) {
	var count atomic.Int64
	token := signedToken(t, time.Now().Add(time.Hour))
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		time.Sleep(50 * time.Millisecond) // hold callers in the same flight
		http.SetCookie(w, &http.Cookie{Name: accessTokenCookie, Value: token})
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()

	m := newTestManager(t, slow.URL)

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: Token() error = %v", i, err)
		}
	}
	if count.Load() != 1 {
		t.Errorf("exchange count = %d, want 1 for %d concurrent callers", count.Load(), callers)
	}
}

func TestManager_Token_ExchangeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"invalid client"}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	_, err := m.Token(context.Background())
	var exchErr *ExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("Token() error = %v, want *ExchangeError", err)
	}
	if exchErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want %d", exchErr.Status, http.StatusForbidden)
	}
	if !strings.Contains(exchErr.Message, "invalid client") {
		t.Errorf("Message = %q, want backend detail", exchErr.Message)
	}
	if strings.Contains(err.Error(), "secret456") {
		t.Errorf("error message leaks the client secret: %q", err.Error())
	}
}

func TestManager_Token_FailureShared(t *testing.T) {
	var count atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		var exchErr *ExchangeError
		if !errors.As(err, &exchErr) {
			t.Fatalf("caller %d: error = %v, want *ExchangeError", i, err)
		}
	}
	if count.Load() != 1 {
		t.Errorf("exchange count = %d, want 1: waiting callers must share the failure", count.Load())
	}
}

func TestManager_Token_RetriesAfterFailure(t *testing.T) {
	var count atomic.Int64
	token := signedToken(t, time.Now().Add(time.Hour))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: accessTokenCookie, Value: token})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	if _, err := m.Token(context.Background()); err == nil {
		t.Fatal("Token() expected error on first exchange")
	}

	// A failed refresh must not leave the manager permanently broken.
	got, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() after failed refresh error = %v", err)
	}
	if got != token {
		t.Errorf("Token() = %q, want %q", got, token)
	}
}

func TestManager_Invalidate(t *testing.T) {
	var count atomic.Int64
	token := signedToken(t, time.Now().Add(time.Hour))
	server := newExchangeServer(t, token, &count)
	defer server.Close()

	m := newTestManager(t, server.URL)

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	m.Invalidate()
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() after Invalidate error = %v", err)
	}
	if count.Load() != 2 {
		t.Errorf("exchange count = %d, want 2 after invalidation", count.Load())
	}
}

func TestManager_Token_ExpiredTriggersRefresh(t *testing.T) {
	var count atomic.Int64
	expired := signedToken(t, time.Now().Add(-time.Minute))
	server := newExchangeServer(t, expired, &count)
	defer server.Close()

	m := newTestManager(t, server.URL)

	// Every call sees an already-expired token and refreshes.
	for i := 0; i < 2; i++ {
		if _, err := m.Token(context.Background()); err != nil {
			t.Fatalf("Token() error = %v", err)
		}
	}
	if count.Load() != 2 {
		t.Errorf("exchange count = %d, want 2 for an expired token", count.Load())
	}
}

func TestManager_StaticToken(t *testing.T) {
	var count atomic.Int64
	server := newExchangeServer(t, "unused", &count)
	defer server.Close()

	m, err := NewManager(Config{BaseURL: server.URL, StaticToken: "pre-issued"})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	got, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "pre-issued" {
		t.Errorf("Token() = %q, want %q", got, "pre-issued")
	}
	m.Invalidate()
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() after Invalidate error = %v", err)
	}
	if count.Load() != 0 {
		t.Errorf("exchange count = %d, want 0 in static-token mode", count.Load())
	}
}

func TestManager_Token_MissingCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	_, err := m.Token(context.Background())
	var exchErr *ExchangeError
	if !errors.As(err, &exchErr) {
		t.Fatalf("Token() error = %v, want *ExchangeError", err)
	}
	if !strings.Contains(exchErr.Message, "access_token") {
		t.Errorf("Message = %q, want mention of the missing cookie", exchErr.Message)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, exp)

	got, ok := tokenExpiry(token)
	if !ok {
		t.Fatal("tokenExpiry() ok = false, want true")
	}
	if !got.Equal(exp) {
		t.Errorf("tokenExpiry() = %v, want %v", got, exp)
	}

	if _, ok := tokenExpiry("not-a-jwt"); ok {
		t.Error("tokenExpiry(garbage) ok = true, want false")
	}
}

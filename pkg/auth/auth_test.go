package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims SessionClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// TestNewSessionID tests session ID generation
func TestNewSessionID(t *testing.T) {
	id1 := NewSessionID()
	id2 := NewSessionID()

	if id1 == "" {
		t.Error("Session ID should not be empty")
	}
	if id1 == id2 {
		t.Error("Session IDs should be unique")
	}
	if len(id1) != 36 {
		t.Errorf("Session ID should be a UUID, got %q", id1)
	}
}

// TestSessionTokenRoundTrip tests JWT token creation and validation
func TestSessionTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	token, err := GenerateSessionToken("session-123")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	claims, err := ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.SessionID != "session-123" {
		t.Errorf("Expected session ID session-123, got %s", claims.SessionID)
	}
	if claims.Issuer != defaultIssuer {
		t.Errorf("Expected issuer %s, got %s", defaultIssuer, claims.Issuer)
	}
}

func TestValidateSessionTokenRejects(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	now := time.Now()

	valid := func(sid string, exp time.Time) SessionClaims {
		return SessionClaims{
			SessionID: sid,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(exp),
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			},
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"expired", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), valid("s", now.Add(-time.Hour)))},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte("other"), valid("s", now.Add(time.Hour)))},
		{"no session id", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), valid("", now.Add(time.Hour)))},
		{"none algorithm", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid("s", now.Add(time.Hour)))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateSessionToken(tc.token)
			if err == nil {
				t.Fatal("Expected validation to fail")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestHandleSessionIssuesToken(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	w := httptest.NewRecorder()
	HandleSession(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp SessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.Token == "" || resp.SessionID == "" {
		t.Fatalf("Unexpected response: %+v", resp)
	}

	claims, err := ValidateSessionToken(resp.Token)
	if err != nil {
		t.Fatalf("Issued token does not validate: %v", err)
	}
	if claims.SessionID != resp.SessionID {
		t.Errorf("Token session %s does not match response %s", claims.SessionID, resp.SessionID)
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == TokenCookie && c.Value == resp.Token {
			found = true
		}
	}
	if !found {
		t.Error("Expected session cookie to be set")
	}
}

func TestHandleSessionValidates(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	token, err := GenerateSessionToken("abc")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
		wantID     string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "abc"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token}) }, http.StatusOK, "abc"},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }, http.StatusUnauthorized, ""},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			tc.prepare(req)
			w := httptest.NewRecorder()
			HandleSession(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("Expected status %d, got %d", tc.wantStatus, w.Code)
			}
			var resp SessionResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.SessionID != tc.wantID {
				t.Errorf("Expected session %q, got %q", tc.wantID, resp.SessionID)
			}
		})
	}
}

func TestHandleSessionMethods(t *testing.T) {
	w := httptest.NewRecorder()
	HandleSession(w, httptest.NewRequest(http.MethodOptions, "/api/session", nil))
	if w.Code != http.StatusOK {
		t.Errorf("OPTIONS: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	HandleSession(w, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE: expected 405, got %d", w.Code)
	}
}

func TestRequireSessionToken(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	token, err := GenerateSessionToken("ctx-session")
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	h := RequireSessionToken(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
		if claims, ok := GetClaimsFromContext(r.Context()); !ok || claims.SessionID != seen {
			t.Error("claims missing from context")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/x?token="+token, nil)
	w := httptest.NewRecorder()
	h(w, req)
	if seen != "ctx-session" {
		t.Errorf("Expected session in context, got %q", seen)
	}

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded list", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"}, "10.0.0.1:1", "198.51.100.7"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"no port", nil, "pipe", "pipe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func BenchmarkTokenValidation(b *testing.B) {
	token, err := GenerateSessionToken("bench")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateSessionToken(token); err != nil {
			b.Fatal(err)
		}
	}
}

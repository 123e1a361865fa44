package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newRouter(v *Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", v.Middleware(), func(c *gin.Context) {
		id, _ := GetUserID(c.Request.Context())
		c.String(http.StatusOK, id)
	})
	return r
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret", "agrilens")
	valid, err := v.Issue("farmer-1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, _ := v.Issue("farmer-1", -time.Hour)
	otherAudience, _ := NewVerifier("secret", "elsewhere").Issue("farmer-1", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{"agrilens"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	wrongKey, _ := NewVerifier("other", "agrilens").Issue("farmer-1", time.Hour)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, "farmer-1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "farmer-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong audience", "Bearer " + otherAudience, http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized, ""},
	}

	router := newRouter(v)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Fatalf("expected body %q, got %q", tt.body, w.Body.String())
			}
		})
	}
}

func TestVerifyErrors(t *testing.T) {
	v := NewVerifier("secret", "agrilens")
	other, _ := NewVerifier("secret", "elsewhere").Issue("farmer-1", time.Hour)
	if _, err := v.Verify(other); err != ErrBadAudience {
		t.Fatalf("expected ErrBadAudience, got %v", err)
	}
	if _, err := NewVerifier(" ", "").Verify("x"); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if _, err := v.Verify("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestIssueRejectsBlankSubject(t *testing.T) {
	v := NewVerifier("secret", "")
	for _, subject := range []string{"", "   "} {
		if token, err := v.Issue(subject, time.Hour); err != ErrMissingSubject || token != "" {
			t.Fatalf("subject %q: expected ErrMissingSubject, got token=%q err=%v", subject, token, err)
		}
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nlagree/cryptochat/internal/auth"
)

func TestAuthMiddleware(t *testing.T) {
	var gotUserID int
	handler := Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r)
	}))

	token, err := auth.GenerateToken(42)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d", rr.Code)
	}
	if gotUserID != 42 {
		t.Errorf("Expected user id 42 in context, got %d", gotUserID)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	handler := Auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run without a valid token")
	}))

	oldTTL := auth.TokenTTL
	auth.TokenTTL = -time.Minute
	expired, _ := auth.GenerateToken(42)
	auth.TokenTTL = oldTTL

	cases := map[string]string{
		"missing":   "",
		"not-bearer": "Basic abc",
		"garbage":   "Bearer garbage",
		"expired":   "Bearer " + expired,
	}
	for name, header := range cases {
		req := httptest.NewRequest("GET", "/users", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rr.Code)
		}
	}
}

package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"go.uber.org/zap"
)

type testUser struct {
	ID   string
	Role string
}

func TestAuthProviders(t *testing.T) {
	basic := &BasicAuthProvider{Credentials: map[string]string{"alice": "secret"}}
	bearer := &BearerTokenProvider{ValidTokens: map[string]bool{"tok": true}}
	validator := &BearerTokenProvider{Validator: func(token string) bool { return token == "custom" }}
	apiKey := &APIKeyProvider{ValidKeys: map[string]bool{"key": true}, Header: "X-API-Key", Query: "api_key"}

	tests := []struct {
		name     string
		provider AuthProvider
		setup    func(req *common.Request)
		expected bool
	}{
		{"basic valid", basic, func(req *common.Request) {
			hr, _ := http.NewRequest(http.MethodPost, "/", nil)
			hr.SetBasicAuth("alice", "secret")
			req.Header.Set("Authorization", hr.Header.Get("Authorization"))
		}, true},
		{"basic wrong password", basic, func(req *common.Request) {
			hr, _ := http.NewRequest(http.MethodPost, "/", nil)
			hr.SetBasicAuth("alice", "nope")
			req.Header.Set("Authorization", hr.Header.Get("Authorization"))
		}, false},
		{"basic missing", basic, func(req *common.Request) {}, false},
		{"bearer valid", bearer, func(req *common.Request) { req.Header.Set("Authorization", "Bearer tok") }, true},
		{"bearer invalid", bearer, func(req *common.Request) { req.Header.Set("Authorization", "Bearer other") }, false},
		{"bearer wrong scheme", bearer, func(req *common.Request) { req.Header.Set("Authorization", "Token tok") }, false},
		{"bearer validator", validator, func(req *common.Request) { req.Header.Set("Authorization", "Bearer custom") }, true},
		{"api key header", apiKey, func(req *common.Request) { req.Header.Set("X-API-Key", "key") }, true},
		{"api key query", apiKey, func(req *common.Request) { req.Query["api_key"] = "key" }, true},
		{"api key invalid", apiKey, func(req *common.Request) { req.Query["api_key"] = "bad" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest()
			tt.setup(req)
			if got := tt.provider.Authenticate(req); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestAuthenticationWithProvider(t *testing.T) {
	mw := AuthenticationWithProvider(&BearerTokenProvider{ValidTokens: map[string]bool{"tok": true}}, zap.NewNop())

	_, _, err := run(newRequest(), []common.Middleware{mw}, ok(nil))
	if common.StatusCode(err) != http.StatusUnauthorized || common.ErrorName(err) != "AuthenticationError" {
		t.Errorf("Expected AuthenticationError (401), got %v", err)
	}

	req := newRequest()
	req.Header.Set("Authorization", "Bearer tok")
	if _, _, err := run(req, []common.Middleware{mw}, ok(nil)); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func newUserAuth() *UserAuthConfig[testUser] {
	return &UserAuthConfig[testUser]{
		Authenticate: func(ctx context.Context, token string) (testUser, bool) {
			switch token {
			case "admin-token":
				return testUser{ID: "1", Role: "admin"}, true
			case "user-token":
				return testUser{ID: "2", Role: "user"}, true
			}
			return testUser{}, false
		},
		UserID: func(u testUser) string { return u.ID },
	}
}

// TestAuthRequired tests that the session user is visible to the terminal handler
func TestAuthRequired(t *testing.T) {
	auth := AuthRequired(newUserAuth())

	_, _, err := run(newRequest(), []common.Middleware{auth}, ok(nil))
	if common.StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, common.StatusCode(err))
	}

	req := newRequest()
	req.Header.Set("Authorization", "Bearer admin-token")
	res, _, err := run(req, []common.Middleware{auth}, func(req *common.Request, res *common.Response) (any, error) {
		user, ok := SessionUser[testUser](res)
		if !ok {
			return nil, common.NewAuthenticationError("")
		}
		return user.Role, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result, _ := res.Result(); result != "admin" {
		t.Errorf("Expected result %q, got %v", "admin", result)
	}
	if UserID(res) != "1" {
		t.Errorf("Expected user ID %q, got %q", "1", UserID(res))
	}
}

func TestAuthOptional(t *testing.T) {
	auth := AuthOptional(newUserAuth())

	res, _, err := run(newRequest(), []common.Middleware{auth}, ok("anonymous"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := SessionUser[testUser](res); ok {
		t.Error("Expected no session user")
	}

	req := newRequest()
	req.Header.Set("Authorization", "Bearer user-token")
	res, _, err = run(req, []common.Middleware{auth}, ok("known"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if UserID(res) != "2" {
		t.Errorf("Expected user ID %q, got %q", "2", UserID(res))
	}
}

func TestAuthorize(t *testing.T) {
	adminOnly := Authorize(func(u testUser) bool { return u.Role == "admin" })
	mws := []common.Middleware{AuthOptional(newUserAuth()), adminOnly}

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"user", "user-token", http.StatusForbidden},
		{"admin", "admin-token", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest()
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			_, _, err := run(req, mws, ok(nil))
			if tt.status == 0 {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if common.StatusCode(err) != tt.status {
				t.Errorf("Expected status %d, got %d (%v)", tt.status, common.StatusCode(err), err)
			}
		})
	}
}

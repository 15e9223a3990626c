package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"fleetpark/internal/domain"
	"fleetpark/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "rejected-format" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid request"}`))
			return
		}
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":   domain.User{ID: "u1", Email: req.Email, Role: domain.RoleAdmin},
			"tokens": domain.TokenPair{AccessToken: "a1", RefreshToken: "r1"},
		})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer a1":
			_ = json.NewEncoder(w).Encode(map[string]any{"user": domain.User{ID: "u1", Role: domain.RoleAdmin}})
		case "Bearer overloaded":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefreshToken != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tokens": domain.TokenPair{AccessToken: "a2", RefreshToken: "r2"}})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLogin(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/", time.Second, zap.NewNop())

	res, err := c.Login(context.Background(), "admin@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User.Role != domain.RoleAdmin || res.Tokens.AccessToken != "a1" || res.Tokens.RefreshToken != "r1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := c.Login(context.Background(), "admin@example.com", "wrong"); !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestClientCurrentUser(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second, nil)

	user, err := c.CurrentUser(context.Background(), "a1")
	if err != nil || user.ID != "u1" {
		t.Fatalf("expected u1, got %+v,%v", user, err)
	}
	if _, err := c.CurrentUser(context.Background(), "expired"); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := c.CurrentUser(context.Background(), "overloaded"); !errors.Is(err, session.ErrUnavailable) {
		t.Fatalf("expected unavailable on 503, got %v", err)
	}
}

func TestClientRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second, nil)

	pair, err := c.Refresh(context.Background(), "r1")
	if err != nil || pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
		t.Fatalf("unexpected refresh: %+v,%v", pair, err)
	}
	if _, err := c.Refresh(context.Background(), "bad"); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("expected unauthorized refresh, got %v", err)
	}
	if err := c.Logout(context.Background(), "a2", "r2"); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := newTestServer(t)
	url := srv.URL
	srv.Close()
	c := NewClient(url, time.Second, nil)

	if _, err := c.Login(context.Background(), "admin@example.com", "secret"); !errors.Is(err, session.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestClientLogin_BadRequestIsInvalidCredentials(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL, time.Second, zap.NewNop())

	if _, err := c.Login(context.Background(), "rejected-format", "secret"); !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for 400, got %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDashboardServer(t *testing.T, loginToken string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var info struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil || info.Token != loginToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"unauthorized","message":"Invalid login token"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "1"})
		json.NewEncoder(w).Encode(PrivateConfig{ControllerAuthKey: "controller-key", ControllerHost: "controller.example.com"})
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthClientLoginLogout(t *testing.T) {
	srv := newDashboardServer(t, "letmein")
	tokens := NewTokenSource("", false)
	c := NewAuthClient(srv.URL+"/", tokens)
	ctx := context.Background()

	conf, err := c.Login(ctx, "letmein")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if conf.ControllerHost != "controller.example.com" {
		t.Errorf("unexpected config: %+v", conf)
	}
	if tokens.Token() != "controller-key" {
		t.Errorf("expected controller key to be installed, got %q", tokens.Token())
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if tokens.Token() != "" {
		t.Errorf("expected key to be cleared, got %q", tokens.Token())
	}
}

func TestAuthClientLoginRejected(t *testing.T) {
	srv := newDashboardServer(t, "letmein")
	tokens := NewTokenSource("old", false)
	c := NewAuthClient(srv.URL, tokens)

	_, err := c.Login(context.Background(), "wrong")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized || httpErr.Message != "Invalid login token" {
		t.Errorf("unexpected error: %+v", httpErr)
	}
	if httpErr.Error() != "[unauthorized] Invalid login token" {
		t.Errorf("unexpected message %q", httpErr.Error())
	}
	if tokens.Token() != "old" {
		t.Errorf("key must not change on failure, got %q", tokens.Token())
	}
}

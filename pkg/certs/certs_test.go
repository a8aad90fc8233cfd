package certs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTLSConfigServerName(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"controller.example.com:443", "controller.example.com"},
		{"controller.example.com", "controller.example.com"},
		{"10.0.0.1:443", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg, err := LoadTLSConfig("", "", "", tt.host)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.ServerName != tt.want {
				t.Errorf("expected server name %q, got %q", tt.want, cfg.ServerName)
			}
		})
	}
}

func TestLoadTLSConfigBadCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTLSConfig(path, "", "", "localhost"); err == nil {
		t.Fatal("expected an error for an invalid CA bundle")
	}
	if _, err := LoadTLSConfig(filepath.Join(t.TempDir(), "missing.pem"), "", "", "localhost"); err == nil {
		t.Fatal("expected an error for a missing CA bundle")
	}
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-yaml"

	"controller-dashboard/internal/api"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ControllerAddress != DefaultControllerAddress {
		t.Errorf("expected default address, got %q", cfg.ControllerAddress)
	}
	if cfg.Codec != api.CodecCBOR {
		t.Errorf("expected cbor codec, got %q", cfg.Codec)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("expected page size %d, got %d", DefaultPageSize, cfg.PageSize)
	}
	p := cfg.Retry.Policy()
	if p.Base != time.Second || p.Increment != 10*time.Second || p.MaxRetries != 3 {
		t.Errorf("unexpected retry policy %+v", p)
	}
	for feature, value := range DefaultFeatureValues {
		if cfg.IsFeatureEnabled(feature) != value {
			t.Errorf("feature %s: expected %v", feature, value)
		}
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.yaml")
	writeFile(t, path, `
controller_address: controller.example.com:443
dashboard_url: https://dashboard.example.com/
codec: json
page_size: 20
retry:
  base_delay: 2s
  max_retries: 5
log_level: debug
features:
  stream_creates: false
  not_a_feature: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"address", cfg.ControllerAddress, "controller.example.com:443"},
		{"dashboard url trimmed", cfg.DashboardURL, "https://dashboard.example.com"},
		{"codec", cfg.Codec, api.CodecJSON},
		{"page size", cfg.PageSize, int32(20)},
		{"base delay", cfg.Retry.BaseDelay, 2 * time.Second},
		{"increment default", cfg.Retry.Increment, 10 * time.Second},
		{"max retries", cfg.Retry.MaxRetries, 5},
		{"log level", cfg.LogLevel, "debug"},
		{"log format default", cfg.LogFormat, DefaultLogFormat},
		{"stream creates", cfg.IsFeatureEnabled(FeatureStreamCreates), false},
		{"stream updates default", cfg.IsFeatureEnabled(FeatureStreamUpdates), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}

	if _, ok := cfg.Features["not_a_feature"]; ok {
		t.Error("unknown feature must be dropped")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, "controller_address: [unterminated")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigUnknownCodecFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, "codec: protobuf\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Codec != api.CodecCBOR {
		t.Errorf("expected fallback to cbor, got %q", cfg.Codec)
	}
}

func TestLoadConfigReadsTokenFile(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "key")
	writeFile(t, tokenPath, "  secret-key\n")
	path := filepath.Join(dir, "dashboard.yaml")
	writeFile(t, path, "auth_key: ignored\ntoken_file: "+tokenPath+"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AuthKey != "secret-key" {
		t.Errorf("expected key from token file, got %q", cfg.AuthKey)
	}

	writeFile(t, path, "token_file: "+filepath.Join(dir, "missing")+"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for missing token file")
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dashboard.yaml")

	cfg := NewConfig()
	cfg.ControllerAddress = "10.0.0.1:443"
	cfg.TokenFile = filepath.Join(dir, "key")
	cfg.AuthKey = "from-token-file"
	cfg.Features[FeatureConfirmWriteCancel] = false
	writeFile(t, cfg.TokenFile, "from-token-file")

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw struct {
		AuthKey  string          `yaml:"auth_key"`
		Features map[string]bool `yaml:"features"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw.AuthKey != "" {
		t.Error("key backed by a token file must not be written to the config")
	}
	if len(raw.Features) != 1 || raw.Features[FeatureConfirmWriteCancel] {
		t.Errorf("expected only the non-default feature, got %v", raw.Features)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.ControllerAddress != "10.0.0.1:443" || loaded.AuthKey != "from-token-file" {
		t.Errorf("unexpected reloaded config %+v", loaded)
	}
	if loaded.IsFeatureEnabled(FeatureConfirmWriteCancel) {
		t.Error("expected confirm_write_cancel to stay disabled")
	}
}

func TestTokenWatcherPushesNewKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	writeFile(t, path, "one")

	tokens := api.NewTokenSource("one", false)
	changed := make(chan string, 4)
	w := NewTokenWatcher(path, func(token string) {
		tokens.SetToken(token)
		changed <- token
	})
	w.SetSettle(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "two\n")
	select {
	case got := <-changed:
		if got != "two" || tokens.Token() != "two" {
			t.Errorf("expected key two, got %q (source %q)", got, tokens.Token())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for token reload")
	}
}

func TestConfigWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	writeFile(t, path, "log_level: info\n")

	changed := make(chan *Config, 4)
	w := NewConfigWatcher(path, func(cfg *Config) { changed <- cfg })
	w.SetSettle(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "log_level: debug\npage_size: 10\n")
	select {
	case cfg := <-changed:
		if cfg.LogLevel != "debug" || cfg.PageSize != 10 {
			t.Errorf("unexpected reloaded config %+v", cfg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

package api

import (
	"context"
	"encoding/base64"
	"sync/atomic"
)

// AuthKeyHeader carries the controller key on every call.
const AuthKeyHeader = "auth-key"

// TokenSource is a per-RPC credential whose key can be swapped while
// streams are running. New calls and stream reconnects pick up the new key.
type TokenSource struct {
	key    atomic.Pointer[string]
	secure bool
}

// NewTokenSource returns a TokenSource holding key. When requireTLS is set the
// key is never sent over an insecure connection.
func NewTokenSource(key string, requireTLS bool) *TokenSource {
	ts := &TokenSource{secure: requireTLS}
	ts.SetToken(key)
	return ts
}

// SetToken replaces the key.
func (ts *TokenSource) SetToken(key string) {
	ts.key.Store(&key)
}

// Token returns the current key.
func (ts *TokenSource) Token() string {
	if k := ts.key.Load(); k != nil {
		return *k
	}
	return ""
}

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (ts *TokenSource) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	key := ts.Token()
	if key == "" {
		return nil, nil
	}
	return map[string]string{
		AuthKeyHeader:   key,
		"authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+key)),
	}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (ts *TokenSource) RequireTransportSecurity() bool {
	return ts.secure
}

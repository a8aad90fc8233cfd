package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc/credentials"

	"controller-dashboard/pkg/log"
)

// LoadTLSCredentials builds gRPC transport credentials for the controller.
// caCertPath may be empty to use the system roots; certPath and keyPath are
// only needed when the controller asks for a client certificate.
func LoadTLSCredentials(caCertPath, certPath, keyPath, host string) (credentials.TransportCredentials, error) {
	tlsConfig, err := LoadTLSConfig(caCertPath, certPath, keyPath, host)
	if err != nil {
		return nil, err
	}
	// gRPC uses HTTP/2 under the hood, make sure we advertise it via ALPN
	tlsConfig.NextProtos = []string{"h2"}
	return credentials.NewTLS(tlsConfig), nil
}

// LoadTLSConfig returns a client tls.Config for the given CA bundle and
// optional client key pair.
func LoadTLSConfig(caCertPath, certPath, keyPath, host string) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if caCertPath != "" {
		caCert, err := os.ReadFile(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caCert); !ok {
			return nil, fmt.Errorf("failed to append CA certificate to pool")
		}
		tlsConfig.RootCAs = pool
	}

	if certPath != "" || keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate and private key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Set ServerName only if host looks like a hostname. Raw IPs are usually
	// missing from the certificate SANs.
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) == nil && host != "" {
		tlsConfig.ServerName = host
	}

	log.Debug("Loaded TLS configuration", "ca", caCertPath, "cert", certPath, "server_name", tlsConfig.ServerName)
	return tlsConfig, nil
}

// Package tlscert serves the HTTPS certificate from a PEM cert/key pair on
// disk, picking up rotated files without a restart.
package tlscert

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// MinTLSVersion is the minimum supported TLS version for the server.
const MinTLSVersion = tls.VersionTLS12

// Source loads a certificate pair and reloads it when either file changes.
type Source struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu      sync.Mutex
	cert    *tls.Certificate
	certMod time.Time
	keyMod  time.Time
}

// Load validates the pair and returns a Source. The key file must not be
// readable by group or others.
func Load(certFile, keyFile string, logger *slog.Logger) (*Source, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("tls_cert_file and tls_key_file are required when tls_mode=file")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := statFile(certFile); err != nil {
		return nil, fmt.Errorf("invalid certificate file: %w", err)
	}
	keyInfo, err := statFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("invalid key file: %w", err)
	}
	if mode := keyInfo.Mode().Perm(); mode&0o077 != 0 {
		return nil, fmt.Errorf("key file has insecure permissions %o (should be 0600 or 0400)", mode)
	}

	s := &Source{certFile: certFile, keyFile: keyFile, logger: logger}
	if _, err := s.certificate(); err != nil {
		return nil, err
	}
	return s, nil
}

// TLSConfig returns a server config that resolves the certificate per handshake.
func (s *Source) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: MinTLSVersion,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return s.certificate()
		},
	}
}

// Description names the files the certificate comes from.
func (s *Source) Description() string {
	return fmt.Sprintf("file (cert=%s, key=%s)", s.certFile, s.keyFile)
}

// certificate returns the cached pair, reloading it when a file's mtime moved.
// A failed reload keeps serving the previous certificate.
func (s *Source) certificate() (*tls.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	certInfo, certErr := os.Stat(s.certFile)
	keyInfo, keyErr := os.Stat(s.keyFile)
	if s.cert != nil && certErr == nil && keyErr == nil &&
		certInfo.ModTime().Equal(s.certMod) && keyInfo.ModTime().Equal(s.keyMod) {
		return s.cert, nil
	}

	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		if s.cert != nil {
			s.logger.Error("failed to reload certificate, serving previous one",
				slog.String("cert_file", s.certFile),
				slog.String("error", err.Error()))
			return s.cert, nil
		}
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	if s.cert != nil {
		s.logger.Info("certificate reloaded", slog.String("cert_file", s.certFile))
	}
	s.cert = &cert
	if certErr == nil {
		s.certMod = certInfo.ModTime()
	}
	if keyErr == nil {
		s.keyMod = keyInfo.ModTime()
	}
	return s.cert, nil
}

func statFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, errors.New("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return nil, errors.New("file is empty")
	}
	return info, nil
}

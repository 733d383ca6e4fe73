package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"phone-auth-service/internal/config"
	"phone-auth-service/internal/util"
)

var ErrNoCertificate = errors.New("no TLS certificate available")

// TLSManager picks a certificate source in order: ACME, files on disk, and
// outside production a self-signed development certificate.
type TLSManager struct {
	server   config.ServerConfig
	allowDev bool
	autoCert *autocert.Manager
	devCerts *DevCertGenerator

	mu       sync.Mutex
	fileCert *tls.Certificate
	devCert  *tls.Certificate
}

func NewTLSManager(cfg *config.Config) *TLSManager {
	m := &TLSManager{
		server:   cfg.Server,
		allowDev: !cfg.IsProduction(),
		devCerts: NewDevCertGenerator(cfg.Server.AutoCertDir),
	}
	if cfg.Server.EnableTLS && cfg.Server.AutoCert {
		m.setupAutoCert()
	}
	return m
}

func (m *TLSManager) setupAutoCert() {
	if err := os.MkdirAll(m.server.AutoCertDir, 0o700); err != nil {
		util.Warn("Could not create autocert directory", zap.Error(err))
		return
	}

	m.autoCert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(m.server.Domain),
		Cache:      autocert.DirCache(m.server.AutoCertDir),
		Email:      m.server.Email,
	}

	util.Info("AutoCert configured",
		zap.String("domain", m.server.Domain),
		zap.String("cache_dir", m.server.AutoCertDir))
}

func (m *TLSManager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		cert, err := m.autoCert.GetCertificate(hello)
		if err == nil {
			return cert, nil
		}
		util.Warn("AutoCert lookup failed", zap.String("server_name", hello.ServerName), zap.Error(err))
	}

	if cert, err := m.loadFileCert(); err == nil {
		return cert, nil
	} else if !errors.Is(err, ErrNoCertificate) {
		util.Warn("Could not load TLS key pair", zap.Error(err))
	}

	if !m.allowDev {
		return nil, ErrNoCertificate
	}
	return m.loadDevCert()
}

func (m *TLSManager) loadFileCert() (*tls.Certificate, error) {
	if m.server.CertFile == "" || m.server.KeyFile == "" {
		return nil, ErrNoCertificate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fileCert != nil {
		return m.fileCert, nil
	}
	cert, err := tls.LoadX509KeyPair(m.server.CertFile, m.server.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	m.fileCert = &cert
	return m.fileCert, nil
}

func (m *TLSManager) loadDevCert() (*tls.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.devCert != nil {
		return m.devCert, nil
	}
	hosts := []string{m.server.Domain, "localhost", "127.0.0.1", "::1"}
	cert, err := m.devCerts.GenerateCert(hosts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	m.devCert = &cert
	return m.devCert, nil
}

func (m *TLSManager) GetTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// HTTPHandler answers ACME http-01 challenges and passes everything else to
// fallback.
func (m *TLSManager) HTTPHandler(fallback http.Handler) http.Handler {
	if m.autoCert == nil {
		return fallback
	}
	return m.autoCert.HTTPHandler(fallback)
}

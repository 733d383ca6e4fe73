package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"testing"

	"phone-auth-service/internal/config"
)

func TestDevCertGenerateAndReuse(t *testing.T) {
	dir := t.TempDir()
	gen := NewDevCertGenerator(dir)

	first, err := gen.GenerateCert([]string{"example.test", "127.0.0.1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	leaf, err := x509.ParseCertificate(first.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "example.test" || len(leaf.IPAddresses) != 1 {
		t.Fatalf("sans = %v %v", leaf.DNSNames, leaf.IPAddresses)
	}

	second, err := gen.GenerateCert([]string{"other.test"})
	if err != nil {
		t.Fatal(err)
	}
	if string(second.Certificate[0]) != string(first.Certificate[0]) {
		t.Fatal("valid certificate on disk should be reused")
	}
}

func TestManagerSelfSignedOnlyOutsideProduction(t *testing.T) {
	cfg := &config.Config{Environment: config.EnvDevelopment}
	cfg.Server.AutoCertDir = t.TempDir()
	cfg.Server.Domain = "localhost"

	cert, err := NewTLSManager(cfg).GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	if err != nil || cert == nil {
		t.Fatalf("development cert = %v, %v", cert, err)
	}

	cfg.Environment = config.EnvProduction
	_, err = NewTLSManager(cfg).GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	if !errors.Is(err, ErrNoCertificate) {
		t.Fatalf("production err = %v", err)
	}
}

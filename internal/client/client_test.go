package client

import "testing"

func TestParseClickhouseURL(t *testing.T) {
	tests := []struct {
		in     string
		addr   string
		host   string
		secure bool
	}{
		{"http://ch.local", "ch.local:9000", "ch.local", false},
		{"https://ch.local", "ch.local:9440", "ch.local", true},
		{"clickhouse://ch.local:900", "ch.local:900", "ch.local", false},
		{"ch.local:9000", "ch.local:9000", "ch.local", false},
	}
	for _, tt := range tests {
		ep, err := parseClickhouseURL(tt.in)
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if ep.addr != tt.addr || ep.host != tt.host || ep.secure != tt.secure {
			t.Errorf("%q = %+v", tt.in, ep)
		}
	}

	if _, err := parseClickhouseURL("http://"); err == nil {
		t.Error("expected error for missing host")
	}
}

func TestTLSFilesConfig(t *testing.T) {
	cfg, err := tlsFiles{ServerName: "redis.local"}.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerName != "redis.local" || cfg.RootCAs != nil || len(cfg.Certificates) != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := (tlsFiles{CAFile: "/nonexistent/ca.pem"}).config(); err == nil {
		t.Fatal("expected error for missing CA file")
	}
	if _, err := (tlsFiles{CertFile: "/nonexistent/c.pem", KeyFile: "/nonexistent/k.pem"}).config(); err == nil {
		t.Fatal("expected error for missing key pair")
	}
}

package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Fatalf("server addr default: got %q", cfg.Server.Addr)
	}
	if cfg.Database.Path != "data/finsd.db" {
		t.Fatalf("database path default: got %q", cfg.Database.Path)
	}
	if cfg.Auth.TokenTTLMinutes != 60 {
		t.Fatalf("token ttl default: got %d", cfg.Auth.TokenTTLMinutes)
	}
	if cfg.SMTP.Port != 465 {
		t.Fatalf("smtp port default: got %d", cfg.SMTP.Port)
	}
	if cfg.Verification.CodeTTLMinutes != 0 || cfg.Verification.MaxAttempts != 0 {
		t.Fatalf("verification knobs should default off: %+v", cfg.Verification)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINSD_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("FINSD_AUTH_JWTSECRET", "test-secret")
	t.Setenv("FINSD_SMTP_HOST", "smtp.example.com")
	t.Setenv("FINSD_VERIFICATION_MAXATTEMPTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("server addr override: got %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Fatalf("jwt secret override: got %q", cfg.Auth.JWTSecret)
	}
	if cfg.SMTP.Host != "smtp.example.com" {
		t.Fatalf("smtp host override: got %q", cfg.SMTP.Host)
	}
	if cfg.Verification.MaxAttempts != 5 {
		t.Fatalf("max attempts override: got %d", cfg.Verification.MaxAttempts)
	}
}

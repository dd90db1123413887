package db

import (
	"errors"
	"testing"
)

func TestParseConfig(t *testing.T) {
	if _, err := ParseConfig("  ", 5); !errors.Is(err, ErrMissingDatabaseURL) {
		t.Fatalf("expected ErrMissingDatabaseURL, got %v", err)
	}

	cfg, err := ParseConfig("postgres://service_role:pw@localhost:5432/pool", 7)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxConns != 7 {
		t.Fatalf("expected 7 conns, got %d", cfg.MaxConns)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Fatalf("expected application name %q, got %q", applicationName, got)
	}

	cfg, err = ParseConfig("postgres://localhost/pool?application_name=custom", 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "custom" {
		t.Fatalf("expected explicit application name to win, got %q", got)
	}
}

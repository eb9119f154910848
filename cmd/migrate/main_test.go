package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

func TestEffectiveConfigPath(t *testing.T) {
	if got := effectiveConfigPath("custom.yaml"); got != "custom.yaml" {
		t.Fatalf("expected flag value, got %s", got)
	}

	t.Setenv("CONFIG_PATH", "env.yaml")
	if got := effectiveConfigPath(""); got != "env.yaml" {
		t.Fatalf("expected env value, got %s", got)
	}

	t.Setenv("CONFIG_PATH", "")
	if got := effectiveConfigPath(""); got != "assets/local.yaml" {
		t.Fatalf("expected default path, got %s", got)
	}
}

func TestIntArg(t *testing.T) {
	t.Parallel()

	if n, err := intArg([]string{"steps", "-2"}, "steps"); err != nil || n != -2 {
		t.Fatalf("expected -2, got %d (%v)", n, err)
	}
	if _, err := intArg([]string{"force"}, "force"); err == nil {
		t.Fatal("expected error when argument is missing")
	}
	if _, err := intArg([]string{"force", "latest"}, "force"); err == nil {
		t.Fatal("expected error for non-numeric argument")
	}
}

func TestIgnoreNoChange(t *testing.T) {
	t.Parallel()

	if err := ignoreNoChange(migrate.ErrNoChange); err != nil {
		t.Fatalf("expected ErrNoChange to be ignored, got %v", err)
	}
	boom := errors.New("boom")
	if err := ignoreNoChange(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error passthrough, got %v", err)
	}
}

package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/boshu2/orchestratord/internal/config"
)

func TestGet_ReusesInstanceForSameDirectory(t *testing.T) {
	dir := t.TempDir()
	r := New(config.Default(), zerolog.Nop())

	projectDir, err := Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	inst1, err := r.Get(context.Background(), projectDir)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	inst2, err := r.Get(context.Background(), projectDir)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if inst1 != inst2 {
		t.Fatal("expected the same Instance on repeated Get calls")
	}

	r.Teardown(projectDir)
}

func TestShutdown_ClearsAllInstances(t *testing.T) {
	dir := t.TempDir()
	r := New(config.Default(), zerolog.Nop())
	projectDir, err := Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := r.Get(context.Background(), projectDir); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(r.instances) != 0 {
		t.Fatalf("expected no instances after shutdown, got %d", len(r.instances))
	}
}

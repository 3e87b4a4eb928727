package pipeline_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/momentumsubash/ytd/internal/pipeline"
	"github.com/momentumsubash/ytd/internal/services"
	"github.com/momentumsubash/ytd/internal/testsupport"
)

func TestRunLockAcquireRelease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	lock := pipeline.NewRunLock(cfg)
	if got, want := lock.Path(), filepath.Join(cfg.Paths.StateDir, "ytd.lock"); got != want {
		t.Fatalf("expected lock path %s, got %s", want, got)
	}
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestRunLockRejectsSecondHolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	first := pipeline.NewRunLock(cfg)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	t.Cleanup(func() { _ = first.Release() })

	second := pipeline.NewRunLock(cfg)
	err := second.Acquire()
	if err == nil {
		_ = second.Release()
		t.Fatal("expected second Acquire to fail while lock is held")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := second.Acquire(); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stravation/internal/config"
)

func TestServe_InterruptReturnsCanceled(t *testing.T) {
	cfg := &config.Config{Core: config.Core{
		TZ:      "UTC",
		DBPath:  filepath.Join(t.TempDir(), "cache.db"),
		APIPort: "0",
	}}
	a, err := newApp(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, a, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not stop after cancel")
	}
}

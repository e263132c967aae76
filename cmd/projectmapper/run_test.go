package main

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingStopper struct {
	mu      sync.Mutex
	origins []string
}

func (r *recordingStopper) Stop(origin string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origins = append(r.origins, origin)
	return len(r.origins) == 1
}

func (r *recordingStopper) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.origins...)
}

func TestForwardSignals(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	stop := &recordingStopper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	exited := make(chan struct{})
	go func() {
		forwardSignals(sigCh, done, stop, logger)
		close(exited)
	}()

	sigCh <- syscall.SIGTERM
	sigCh <- os.Interrupt

	deadline := time.Now().Add(2 * time.Second)
	for len(stop.seen()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := stop.seen()
	if len(got) != 2 || got[0] != "signal terminated" || got[1] != "signal interrupt" {
		t.Fatalf("stop origins = %q", got)
	}

	close(done)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("forwardSignals did not return after done closed")
	}
}

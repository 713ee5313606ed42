package transport

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// The server registers a connection before its pumps start and may close it
// in that window (registration failure, eviction). Shutdown must not hang
// waiting on it.
func TestCloseBeforeRunReleasesWaitGroup(t *testing.T) {
	var wg sync.WaitGroup
	conn := NewConnection(context.Background(), &wg, nil, ConnectionConfig{}, nil, nil, newTestLogger())

	conn.Close(errors.New("rejected before start"))

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("WaitGroup not released after Close")
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Expected Done channel to be closed")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	closed := 0
	onClose := func(id uuid.UUID, err error) { closed++ }
	conn := NewConnection(context.Background(), &wg, nil, ConnectionConfig{}, nil, onClose, newTestLogger())

	conn.Close(nil)
	conn.Close(errors.New("second close"))

	if closed != 1 {
		t.Errorf("Expected onClose to run once, ran %d times", closed)
	}
	wg.Wait()
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	var wg sync.WaitGroup
	conn := NewConnection(context.Background(), &wg, nil, ConnectionConfig{}, nil, nil, newTestLogger())
	conn.Close(nil)

	// Must not panic or block.
	conn.Send([]byte(`{"event":"cursor-move"}`))
	wg.Wait()
}

package event

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	bus.Publish(New(TypeUserCreated, "user-1", map[string]string{"email": "john.doe@example.com"}))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case e := <-ch:
			require.Equal(t, TypeUserCreated, e.Type)
			require.Equal(t, "user-1", e.Subject)
			require.NotEmpty(t, e.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, unsubscribe := bus.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(New(TypeUserUpdated, "user-1", nil))
	}
	require.Equal(t, int64(5), bus.Dropped())

	unsubscribe()
	require.NotPanics(t, unsubscribe)
	require.NotPanics(t, func() { bus.Publish(New(TypeUserDeleted, "user-1", nil)) })
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestRunAuditLog(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunAuditLog(ctx, events, logger)
		close(done)
	}()

	bus.Publish(New(TypeUserDeleted, "user-42", map[string]string{"email": "john.doe@example.com"}))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "user-42")
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit log did not stop")
	}
	require.Contains(t, out.String(), "type=user.deleted")
	require.Contains(t, out.String(), "email=john.doe@example.com")
}

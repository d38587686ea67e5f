package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"user-service/internal/event"
	"user-service/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func TestUserLifecyclePublishesEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestUserService(t)
	rec := &recordingPublisher{}
	svc.WithEvents(rec)

	input := johnDoe()
	input.Password = "password"
	created, err := svc.CreateUser(ctx, input)
	require.NoError(t, err)

	input.FirstName = "Johnny"
	_, err = svc.UpdateUser(ctx, created.ID, input)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, created.ID))

	// failed operations publish nothing
	require.ErrorIs(t, svc.DeleteUser(ctx, created.ID), model.ErrUserNotFound)

	require.Equal(t, []event.Type{event.TypeUserCreated, event.TypeUserUpdated, event.TypeUserDeleted}, rec.types())
	for _, e := range rec.events {
		require.Equal(t, created.ID, e.Subject)
		for key, value := range e.Payload {
			require.NotContains(t, key, "hash")
			require.NotContains(t, value, "$2a$")
		}
	}
	require.Equal(t, "true", rec.events[1].Payload["password_changed"])
}

func TestLoginPublishesOutcome(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	authService, users, _ := newTestAuthService(t)
	registerJohn(t, users)
	rec := &recordingPublisher{}
	authService.WithEvents(rec)

	_, err := authService.Login(ctx, model.LoginRequest{Username: "john.doe", Password: "wrong"})
	require.ErrorIs(t, err, model.ErrAuthenticationFailed)
	_, err = authService.Login(ctx, model.LoginRequest{Username: "john.doe", Password: "password"})
	require.NoError(t, err)

	require.Equal(t, []event.Type{event.TypeLoginFailure, event.TypeLoginSuccess}, rec.types())
	require.Equal(t, "john.doe", rec.events[0].Payload["username"])
}

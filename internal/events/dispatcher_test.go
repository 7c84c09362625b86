package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDispatcher_PublishRunsEveryHandler(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()
	errFirst := errors.New("first")
	errSecond := errors.New("second")

	calls := 0
	dispatcher.Subscribe(EventLoginFailed, func(context.Context, Event) error {
		calls++
		return errFirst
	})
	dispatcher.Subscribe(EventLoginFailed, func(context.Context, Event) error {
		calls++
		return errSecond
	})
	dispatcher.Subscribe(EventLoginSucceeded, func(context.Context, Event) error {
		t.Fatal("unexpected handler for login_succeeded")
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{Type: EventLoginFailed, Username: "ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
	assert.ErrorIs(t, err, errSecond)
	assert.Equal(t, 2, calls)
}

func TestInMemoryDispatcher_NoSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()
	assert.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventLoginSucceeded}))
}

func TestInMemoryDispatcher_PanickingHandler(t *testing.T) {
	dispatcher := NewInMemoryDispatcher()
	delivered := false
	dispatcher.Subscribe(EventLoginSucceeded, func(context.Context, Event) error {
		panic("audit sink exploded")
	})
	dispatcher.Subscribe(EventLoginSucceeded, func(context.Context, Event) error {
		delivered = true
		return nil
	})
	dispatcher.Subscribe(EventLoginSucceeded, nil)

	err := dispatcher.Publish(context.Background(), Event{Type: EventLoginSucceeded, Username: "admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login_succeeded handler: panic: audit sink exploded")
	assert.True(t, delivered)
}

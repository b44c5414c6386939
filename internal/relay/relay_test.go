package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/realtime-stack/internal/domain"
)

type fakeQueue struct {
	err       error
	published chan *domain.PersistRecord
}

func newFakeQueue(err error) *fakeQueue {
	return &fakeQueue{err: err, published: make(chan *domain.PersistRecord, 8)}
}

func (f *fakeQueue) Publish(_ context.Context, record *domain.PersistRecord) error {
	if f.err != nil {
		return f.err
	}
	f.published <- record
	return nil
}

func (f *fakeQueue) Close() error { return nil }

type fakeEvents struct {
	err       error
	published chan *domain.MessageEvent
}

func newFakeEvents(err error) *fakeEvents {
	return &fakeEvents{err: err, published: make(chan *domain.MessageEvent, 8)}
}

func (f *fakeEvents) PublishEvent(_ context.Context, event *domain.MessageEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published <- event
	return nil
}

func (f *fakeEvents) Close() error { return nil }

func testRecord() *domain.PersistRecord {
	return &domain.PersistRecord{RoomID: "r1", From: "alice", Payload: []byte(`{"text":"hi"}`), Ts: 1700000000000}
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
		panic("unreachable")
	}
}

func TestRelayPublishesBoth(t *testing.T) {
	queue := newFakeQueue(nil)
	events := newFakeEvents(nil)
	r := NewRelay(queue, events)

	require.NoError(t, r.Relay(context.Background(), testRecord()))

	rec := receive(t, queue.published)
	require.Equal(t, "r1", rec.RoomID)

	ev := receive(t, events.published)
	require.Equal(t, domain.EventMessageSent, ev.Kind)
	require.Equal(t, "r1", ev.RoomID)
	require.Equal(t, "alice", ev.From)
	require.Equal(t, int64(1700000000000), ev.Ts)
}

func TestRelaySurfacesQueueFailure(t *testing.T) {
	queueErr := errors.New("broker unreachable")
	queue := newFakeQueue(queueErr)
	events := newFakeEvents(nil)
	r := NewRelay(queue, events)

	err := r.Relay(context.Background(), testRecord())
	require.ErrorIs(t, err, queueErr)

	// The best-effort event still goes out.
	receive(t, events.published)
}

func TestRelayEventFailureIsIsolated(t *testing.T) {
	queue := newFakeQueue(nil)
	events := newFakeEvents(errors.New("stream down"))
	r := NewRelay(queue, events)

	require.NoError(t, r.Relay(context.Background(), testRecord()))
	receive(t, queue.published)
}

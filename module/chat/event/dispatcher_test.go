package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type recordingBus struct {
	channel string
	name    string
	payload []byte
	err     error
}

func (b *recordingBus) Publish(_ context.Context, channel, name string, payload []byte) error {
	b.channel, b.name, b.payload = channel, name, payload
	return b.err
}

type recordingMirror struct {
	names []string
}

func (m *recordingMirror) Send(name string, _ []byte) { m.names = append(m.names, name) }

func TestDispatchEnvelope(t *testing.T) {
	bus := &recordingBus{}
	mirror := &recordingMirror{}
	d := NewDispatcher(bus, time.Second).WithMirror(mirror)

	d.Dispatch(context.Background(), Event{
		Channel: "conversations.9",
		Name:    ReadUpdated,
		Payload: ReadUpdatedPayload{UserID: 3, MessageID: 41},
	})

	if bus.channel != "conversations.9" || bus.name != ReadUpdated {
		t.Fatalf("published to %q as %q", bus.channel, bus.name)
	}
	var env struct {
		Event   string             `json:"event"`
		Channel string             `json:"channel"`
		Data    ReadUpdatedPayload `json:"data"`
	}
	if err := json.Unmarshal(bus.payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event != ReadUpdated || env.Channel != "conversations.9" {
		t.Errorf("bad envelope: %+v", env)
	}
	if env.Data.UserID != 3 || env.Data.MessageID != 41 {
		t.Errorf("bad data: %+v", env.Data)
	}
	if len(mirror.names) != 1 || mirror.names[0] != ReadUpdated {
		t.Errorf("mirror missed the event: %v", mirror.names)
	}
}

func TestDispatchSwallowsPublishErrors(t *testing.T) {
	bus := &recordingBus{err: errors.New("broker down")}
	mirror := &recordingMirror{}
	d := NewDispatcher(bus, time.Second).WithMirror(mirror)

	// Must not panic or propagate; the mirror still gets its copy.
	d.Dispatch(context.Background(), Event{Channel: "users.1", Name: ContactAdded, Payload: ContactAddedPayload{ID: 2}})
	if len(mirror.names) != 1 {
		t.Fatalf("mirror skipped on publish failure")
	}
}

func TestDispatcherDefaultTimeout(t *testing.T) {
	d := NewDispatcher(&recordingBus{}, 0)
	if d.timeout != 2*time.Second {
		t.Errorf("default timeout = %v", d.timeout)
	}
}

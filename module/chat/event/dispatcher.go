package event

import (
	"context"
	"encoding/json"
	"time"

	"PMessenger/logger"
)

// Bus is the broadcast collaborator: channel-scoped publish with the
// payload already encoded. The NATS implementation lives in service/bus.
type Bus interface {
	Publish(ctx context.Context, channel, name string, payload []byte) error
}

// Mirror receives a copy of every event for out-of-band consumers (the
// kafka offline-push pipeline). Strictly fire-and-forget.
type Mirror interface {
	Send(name string, payload []byte)
}

// Dispatcher fans domain events out to the bus. Emission is best-effort:
// the durable write has already happened when Dispatch runs, so failures
// are logged and dropped, never surfaced to the caller.
type Dispatcher struct {
	bus     Bus
	mirror  Mirror
	timeout time.Duration
}

func NewDispatcher(bus Bus, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{bus: bus, timeout: timeout}
}

// WithMirror attaches an event mirror; nil disables mirroring.
func (d *Dispatcher) WithMirror(m Mirror) *Dispatcher {
	d.mirror = m
	return d
}

// Dispatch publishes one event under a bounded timeout. The triggering
// request must never block past it.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) {
	raw, err := json.Marshal(envelope{Event: e.Name, Channel: e.Channel, Data: e.Payload})
	if err != nil {
		logger.Errorf("[event] marshal %s: %v", e.Name, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.bus.Publish(pubCtx, e.Channel, e.Name, raw); err != nil {
		logger.Errorf("[event] publish %s to %s: %v", e.Name, e.Channel, err)
	}

	if d.mirror != nil {
		d.mirror.Send(e.Name, raw)
	}
}

// envelope is the wire frame clients receive on a channel.
type envelope struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

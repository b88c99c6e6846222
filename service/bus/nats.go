package bus

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	pkgerrors "github.com/pkg/errors"

	"PMessenger/logger"
)

// subjectPrefix scopes every broadcast channel under one NATS namespace;
// the gateway subscribes to the wildcard below it.
const subjectPrefix = "chat.channel."

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

func (c *Config) norm() {
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
}

// Bus carries event envelopes between the API process and every gateway
// node. One subject per channel; payloads are opaque here.
type Bus struct {
	nc *nats.Conn
}

func Connect(cfg Config) (*Bus, error) {
	if len(cfg.Servers) == 0 {
		return nil, pkgerrors.New("nats servers missing")
	}
	cfg.norm()
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnf("[bus] nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("[bus] nats reconnected to %s", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connect nats")
	}
	return &Bus{nc: nc}, nil
}

func (b *Bus) Close() error {
	if b.nc == nil {
		return nil
	}
	return b.nc.Drain()
}

// Publish sends one envelope to a channel's subject. Implements the
// dispatcher's Bus contract; the name rides in a header for consumers that
// filter without decoding.
func (b *Bus) Publish(ctx context.Context, channel, name string, payload []byte) error {
	msg := nats.NewMsg(subjectPrefix + channel)
	msg.Header.Set("event", name)
	msg.Data = payload
	if err := b.nc.PublishMsg(msg); err != nil {
		return pkgerrors.Wrapf(err, "publish %s", channel)
	}
	// Core NATS publish is async; honor the caller's deadline on flush.
	if deadline, ok := ctx.Deadline(); ok {
		return b.nc.FlushTimeout(time.Until(deadline))
	}
	return b.nc.Flush()
}

// SubscribeAll feeds every channel's traffic to handler. The gateway uses
// this to fan frames out to its local sockets; handler gets the bare
// channel name, prefix stripped.
func (b *Bus) SubscribeAll(handler func(channel string, payload []byte)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(subjectPrefix+">", func(m *nats.Msg) {
		handler(strings.TrimPrefix(m.Subject, subjectPrefix), m.Data)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "subscribe")
	}
	return sub, nil
}

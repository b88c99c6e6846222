package chat

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PMessenger/logger"
	"PMessenger/module/chat/service"
	"PMessenger/service/bus"
	"PMessenger/service/storage"
	"PMessenger/tools/ids"
	"PMessenger/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Subscription is the bus handle the gateway drains on shutdown.
// nats.Subscription satisfies it.
type Subscription interface {
	Drain() error
	IsValid() bool
}

// Gateway terminates websockets, authorizes channel subscriptions, and
// fans bus traffic out to local sockets. Presence follows the socket
// lifecycle: online on auth, refreshed on ping, offline on close.
type Gateway struct {
	svc      *service.Service
	presence *storage.Presence
	jwt      security.Options
	hub      *Hub
	fanout   *Fanout
	nodeID   string

	sub Subscription
}

type GatewayConfig struct {
	NodeID        string
	FanoutWorkers int
	FanoutQueue   int
}

func NewGateway(svc *service.Service, presence *storage.Presence, jwt security.Options, cfg GatewayConfig) *Gateway {
	return &Gateway{
		svc:      svc,
		presence: presence,
		jwt:      jwt,
		hub:      NewHub(),
		fanout:   NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue),
		nodeID:   cfg.NodeID,
	}
}

// Run attaches the gateway to the bus. Every envelope for any channel is
// offered to this node's local subscribers.
func (g *Gateway) Run(b *bus.Bus) error {
	sub, err := b.SubscribeAll(g.deliver)
	if err != nil {
		return err
	}
	g.sub = sub
	logger.Infof("[gateway] node %s consuming bus", g.nodeID)
	return nil
}

func (g *Gateway) Close() {
	if g.sub != nil {
		// Drain is asynchronous; in-flight deliveries must finish before
		// the fanout goes away.
		_ = g.sub.Drain()
		deadline := time.Now().Add(5 * time.Second)
		for g.sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
		}
	}
	g.fanout.Close()
}

func (g *Gateway) deliver(channel string, payload []byte) {
	g.fanout.Broadcast(g.hub.Clients(channel), payload)
}

// HandleWS upgrades the request and runs the read loop. Writes happen only
// on the client's writer goroutine.
func (g *Gateway) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[gateway] upgrade: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), ws, 256)
	go client.writeLoop()
	defer g.teardown(client)

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debug("[gateway] read loop ended: " + err.Error())
			}
			return
		}
		frame, err := ParseFrame(raw)
		if err != nil {
			g.push(client, errorFrame("bad frame"))
			continue
		}
		g.handleFrame(c.Request.Context(), client, frame)
	}
}

func (g *Gateway) handleFrame(ctx context.Context, client *Client, frame *ClientFrame) {
	switch frame.Type {
	case FrameAuth:
		g.handleAuth(ctx, client, frame.Token)
	case FrameSubscribe:
		g.handleSubscribe(ctx, client, frame.Channel)
	case FrameUnsubscribe:
		g.hub.Unsubscribe(client, frame.Channel)
		g.push(client, ackFrame(FrameUnsubscribe, frame.Channel))
	case FramePing:
		if client.UserID != 0 {
			if err := g.presence.Online(ctx, client.UserID); err != nil {
				logger.Warnf("[gateway] presence refresh %d: %v", client.UserID, err)
			}
		}
		g.push(client, ackFrame(FramePing, ""))
	case FrameDelivered:
		if client.UserID == 0 {
			g.push(client, errorFrame("unauthenticated"))
			return
		}
		if err := g.svc.AckDelivered(ctx, client.UserID, frame.MessageID); err != nil {
			logger.Debug("[gateway] delivered ack: " + err.Error())
		}
	default:
		g.push(client, errorFrame("unknown frame type"))
	}
}

func (g *Gateway) handleAuth(ctx context.Context, client *Client, token string) {
	sub, err := security.ResolveUserID(g.jwt, token)
	if err != nil {
		g.push(client, errorFrame("auth failed"))
		return
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		g.push(client, errorFrame("auth failed"))
		return
	}
	client.UserID = userID
	if err := g.presence.Online(ctx, userID); err != nil {
		logger.Warnf("[gateway] presence online %d: %v", userID, err)
	}
	// Personal channel comes free with authentication.
	g.hub.Subscribe(client, "users."+sub)
	g.push(client, ackFrame(FrameAuth, ""))
}

func (g *Gateway) handleSubscribe(ctx context.Context, client *Client, channel string) {
	if client.UserID == 0 {
		g.push(client, errorFrame("unauthenticated"))
		return
	}
	ok, err := g.svc.Policy().CanSubscribe(ctx, client.UserID, channel)
	if err != nil {
		logger.Warnf("[gateway] subscribe check %s: %v", channel, err)
		g.push(client, errorFrame("subscribe failed"))
		return
	}
	if !ok {
		g.push(client, errorFrame("forbidden"))
		return
	}
	g.hub.Subscribe(client, channel)
	g.push(client, ackFrame(FrameSubscribe, channel))
}

func (g *Gateway) teardown(client *Client) {
	g.hub.Remove(client)
	client.close()
	if client.UserID != 0 {
		// The request context is gone by now; bound the cleanup ourselves.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := g.presence.Offline(ctx, client.UserID); err != nil {
			logger.Warnf("[gateway] presence offline %d: %v", client.UserID, err)
		}
	}
}

func (g *Gateway) push(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
	}
}

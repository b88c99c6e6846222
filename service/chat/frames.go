package chat

import "encoding/json"

// Frame types spoken over the socket. The client authenticates first; data
// frames arrive on subscribed channels wrapped in the event envelope.
const (
	FrameAuth        = "auth"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FrameDelivered   = "delivered"

	FrameAck   = "ack"
	FrameError = "error"
)

// ClientFrame is everything a client may send; fields beyond Type are
// per-frame.
type ClientFrame struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`      // auth
	Channel   string `json:"channel,omitempty"`    // subscribe/unsubscribe
	MessageID int64  `json:"message_id,omitempty"` // delivered
}

type serverFrame struct {
	Type    string `json:"type"`
	Of      string `json:"of,omitempty"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}

func ParseFrame(raw []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func ackFrame(of, channel string) []byte {
	raw, _ := json.Marshal(serverFrame{Type: FrameAck, Of: of, Channel: channel})
	return raw
}

func errorFrame(msg string) []byte {
	raw, _ := json.Marshal(serverFrame{Type: FrameError, Message: msg})
	return raw
}

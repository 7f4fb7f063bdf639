package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TypeMessage       = "message"
	TypeSystem        = "system"
	TypeUserConnected = "user_connected"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownType      = errors.New("unknown message type")
	ErrBadTimestamp     = errors.New("bad timestamp")
)

// Outbound is the envelope the client sends to the server.
type Outbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Inbound is the envelope the server pushes to the client.
type Inbound struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	UserID    string `json:"user_id,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
}

// timestampLayouts are tried in order. Servers that emit naive ISO8601 timestamps
// (no zone designator) are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// EncodeOutbound wraps a chat body into the outbound wire format.
func EncodeOutbound(content string) ([]byte, error) {
	return json.Marshal(Outbound{Type: TypeMessage, Content: content})
}

// DecodeInbound parses a server payload and checks that it carries a known type.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch in.Type {
	case TypeMessage, TypeSystem, TypeUserConnected:
	case "":
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}

	return in, nil
}

// ParseTimestamp reads an ISO8601 timestamp as sent by the server.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrBadTimestamp)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, raw)
}

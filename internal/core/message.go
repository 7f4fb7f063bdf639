package core

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// MessageKind distinguishes chat lines from server notices.
type MessageKind string

const (
	KindMessage    MessageKind = "message"
	KindSystem     MessageKind = "system"
	KindUserJoined MessageKind = "user-joined"
)

// Message is the domain model for a received chat event.
type Message struct {
	Kind     MessageKind
	Author   string
	AuthorID string
	Body     string
	SentAt   time.Time
	// Timestamp is the server timestamp exactly as received.
	Timestamp string
	Channel   string
}

// IsOwn reports whether the message is a chat line authored by the given session
// identity. Join and system notices are never own.
func (m Message) IsOwn(identity string) bool {
	return identity != "" && m.Kind == KindMessage && m.AuthorID == identity
}

// DedupKey identifies a message for duplicate suppression.
type DedupKey uint64

// KeyOf derives the dedup key from timestamp, author and body.
func KeyOf(timestamp, author, body string) DedupKey {
	d := xxhash.New()
	// NUL separators keep ("ab","c") and ("a","bc") apart.
	_, _ = d.WriteString(timestamp)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(author)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(body)
	return DedupKey(d.Sum64())
}

// Key returns the dedup key of the message.
func (m Message) Key() DedupKey {
	return KeyOf(m.Timestamp, m.Author, m.Body)
}

// decodeMessage parses a transport payload into a Message.
func decodeMessage(data []byte) (Message, error) {
	in, err := proto.DecodeInbound(data)
	if err != nil {
		return Message{}, err
	}

	sentAt, err := proto.ParseTimestamp(in.Timestamp)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Kind:      kindFromWire(in.Type),
		Author:    in.Username,
		AuthorID:  in.UserID,
		Body:      in.Content,
		SentAt:    sentAt,
		Timestamp: in.Timestamp,
		Channel:   in.Channel,
	}, nil
}

func kindFromWire(t string) MessageKind {
	switch t {
	case proto.TypeSystem:
		return KindSystem
	case proto.TypeUserConnected:
		return KindUserJoined
	default:
		return KindMessage
	}
}

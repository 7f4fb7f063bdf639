package http

import (
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// SessionResponse describes the connection manager state.
type SessionResponse struct {
	Status       string `json:"status"`
	Phase        string `json:"phase"`
	Identity     string `json:"identity,omitempty"`
	Username     string `json:"username"`
	Channel      string `json:"channel"`
	Attempts     int    `json:"attempts"`
	SessionID    string `json:"session_id,omitempty"`
	MessageCount int    `json:"message_count"`
}

// MessageResponse is one entry of the message log.
type MessageResponse struct {
	Kind      string    `json:"kind"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"author_id,omitempty"`
	Body      string    `json:"body"`
	Channel   string    `json:"channel"`
	Timestamp string    `json:"timestamp"`
	SentAt    time.Time `json:"sent_at"`
	Own       bool      `json:"own"`
}

func toSessionResponse(s core.Snapshot) SessionResponse {
	return SessionResponse{
		Status:       s.Status.String(),
		Phase:        s.Phase.String(),
		Identity:     s.Identity,
		Username:     s.Params.Username,
		Channel:      s.Params.Channel,
		Attempts:     s.Attempts,
		SessionID:    s.SessionID,
		MessageCount: len(s.Messages),
	}
}

func toMessageResponses(s core.Snapshot) []MessageResponse {
	out := make([]MessageResponse, 0, len(s.Messages))
	for _, msg := range s.Messages {
		out = append(out, MessageResponse{
			Kind:      string(msg.Kind),
			Author:    msg.Author,
			AuthorID:  msg.AuthorID,
			Body:      msg.Body,
			Channel:   msg.Channel,
			Timestamp: msg.Timestamp,
			SentAt:    msg.SentAt,
			Own:       s.Own(msg),
		})
	}
	return out
}

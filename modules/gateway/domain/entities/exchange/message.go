package exchange

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
	ErrEmptySession   = errors.New("empty session id")
)

const MaxMessageLength = 4096

type Repository interface {
	// Append writes messages in argument order; ordering within one call
	// must survive a timestamp-sorted read.
	Append(ctx context.Context, msgs ...Message) error
	ListBySession(ctx context.Context, profileID int, sessionID string) ([]Message, error)
	CountBySession(ctx context.Context, profileID int, sessionID string) (int64, error)
}

// Message is one side of a chat exchange, tied to a widget session.
type Message interface {
	ProfileID() int
	SessionID() string
	Text() string
	IsUser() bool
	CreatedAt() time.Time
}

type message struct {
	profileID int
	sessionID string
	text      string
	isUser    bool
	createdAt time.Time
}

func NewMessage(profileID int, sessionID, text string, isUser bool, createdAt time.Time) (Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &message{
		profileID: profileID,
		sessionID: sessionID,
		text:      text,
		isUser:    isUser,
		createdAt: createdAt,
	}, nil
}

func MustNewMessage(profileID int, sessionID, text string, isUser bool, createdAt time.Time) Message {
	msg, err := NewMessage(profileID, sessionID, text, isUser, createdAt)
	if err != nil {
		panic(err)
	}
	return msg
}

func (m *message) ProfileID() int {
	return m.profileID
}

func (m *message) SessionID() string {
	return m.sessionID
}

func (m *message) Text() string {
	return m.text
}

func (m *message) IsUser() bool {
	return m.isUser
}

func (m *message) CreatedAt() time.Time {
	return m.createdAt
}

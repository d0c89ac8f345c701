package models

import (
	"database/sql"
	"time"
)

type ChatProfile struct {
	ID            int
	TenantID      string
	Name          string
	Endpoint      string
	APIKey        string
	AuthMethod    string
	RequestFormat sql.NullString
	CustomHeaders []byte
	CustomPayload []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Message struct {
	ID        int64
	ProfileID int
	SessionID string
	Message   string
	IsUser    bool
	CreatedAt time.Time
}

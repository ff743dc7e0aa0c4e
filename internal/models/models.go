package models

import "time"

// Account is a user's in-app wallet, keyed by the Telegram user id.
type Account struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Lang      string    `db:"lang" json:"lang"`
	Balance   int       `db:"balance" json:"balance"`
	DemoUsed  int       `db:"demo_used" json:"demo_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Purchase records one credited checkout session. SessionID is the idempotency key.
type Purchase struct {
	SessionID string    `db:"session_id" json:"session_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Pack      string    `db:"pack" json:"pack"`
	Credits   int       `db:"credits" json:"credits"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Pack struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

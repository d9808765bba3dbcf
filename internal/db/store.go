package db

import "github.com/jmoiron/sqlx"

// Store reads schedules and content from a Postgres replica of the
// controller's data. It satisfies the player's schedule and content provider
// interfaces.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

package serverdb

import (
	"fmt"
	"strings"
	"time"
)

// AuthEvent represents a row in the auth_events table.
type AuthEvent struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	EventType string    `json:"event_type"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// Auth event type constants.
const (
	AuthEventSignup      = "signup"
	AuthEventDuplicate   = "signup_duplicate"
	AuthEventLogin       = "login"
	AuthEventLoginFailed = "login_failed"
	AuthEventFinalized   = "finalized"
)

// InsertAuthEvent inserts an auth event row.
func (db *ServerDB) InsertAuthEvent(email, eventType, metadata string) error {
	if metadata == "" {
		metadata = "{}"
	}
	_, err := db.conn.Exec(
		`INSERT INTO auth_events (email, event_type, metadata, created_at) VALUES (?, ?, ?, ?)`,
		strings.ToLower(email), eventType, metadata, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

// QueryAuthEvents returns the newest events, optionally filtered by type and
// email substring.
func (db *ServerDB) QueryAuthEvents(eventType, email string, limit int) ([]AuthEvent, error) {
	limit, _ = clampPage(limit, 0)
	query := `SELECT id, email, event_type, metadata, created_at FROM auth_events`
	var conds []string
	var args []any
	if eventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, eventType)
	}
	if email != "" {
		conds = append(conds, "email LIKE ?")
		args = append(args, "%"+strings.ToLower(email)+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query auth events: %w", err)
	}
	defer rows.Close()

	var events []AuthEvent
	for rows.Next() {
		var e AuthEvent
		if err := rows.Scan(&e.ID, &e.Email, &e.EventType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auth event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query auth events: iterate: %w", err)
	}
	return events, nil
}

// CleanupAuthEvents deletes auth events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupAuthEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := db.conn.Exec(`DELETE FROM auth_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup auth events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

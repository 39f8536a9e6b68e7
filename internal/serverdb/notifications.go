package serverdb

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	NotifyInfo     = "info"
	NotifyWelcome  = "welcome"
	NotifyLinked   = "farmer_linked"
	NotifySoilDone = "soil_result"
)

// Notification is an inbox entry for one user.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateNotification adds a notification to a user's inbox.
func (db *ServerDB) CreateNotification(userID, kind, title, body string) (*Notification, error) {
	if kind == "" {
		kind = NotifyInfo
	}
	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.conn.Exec(`INSERT INTO notifications (id, user_id, kind, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Kind, n.Title, n.Body, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications newest first and the
// number of unread ones.
func (db *ServerDB) ListNotifications(userID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	limit, offset = clampPage(limit, offset)

	var unread int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID).Scan(&unread); err != nil {
		return nil, 0, fmt.Errorf("count unread: %w", err)
	}

	query := `SELECT id, user_id, kind, title, body, read_at, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	rows, err := db.conn.Query(query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list notifications: iterate: %w", err)
	}
	return out, unread, nil
}

// MarkNotificationRead marks one of the user's notifications read.
func (db *ServerDB) MarkNotificationRead(userID, id string) error {
	res, err := db.conn.Exec(`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of the user read
// and returns how many changed.
func (db *ServerDB) MarkAllNotificationsRead(userID string) (int64, error) {
	res, err := db.conn.Exec(`UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`,
		time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteNotification removes one of the user's notifications.
func (db *ServerDB) DeleteNotification(userID, id string) error {
	res, err := db.conn.Exec(`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

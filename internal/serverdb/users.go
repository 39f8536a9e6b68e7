package serverdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles a user can hold.
const (
	RoleFarmer     = "farmer"
	RoleConsultant = "consultant"
	RoleAdmin      = "admin"
)

var (
	// ErrEmailTaken is returned by CreateUser for a registered email.
	ErrEmailTaken = errors.New("user already registered")
	// ErrInvalidCredentials is returned by Authenticate on a bad email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User represents a registered auth identity.
type User struct {
	ID        string
	Email     string
	Role      string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValidRole reports whether role can be assigned to a user.
func IsValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleConsultant, RoleAdmin:
		return true
	}
	return false
}

// CreateUser inserts a new user with a bcrypt password hash. For farmer and
// consultant roles the database trigger creates the matching profile row.
func (db *ServerDB) CreateUser(email, password, role string, metadata map[string]string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	existing, err := db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	id, err := generateID("u_")
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	_, err = db.conn.Exec(
		`INSERT INTO users (id, email, password_hash, role, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, email, string(hash), role, string(meta), now, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{ID: id, Email: email, Role: role, Metadata: metadata, CreatedAt: now, UpdatedAt: now}, nil
}

// Authenticate checks email and password and returns the user.
func (db *ServerDB) Authenticate(email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var hash string
	u, err := scanUser(db.conn.QueryRow(
		`SELECT id, email, role, metadata, created_at, updated_at, password_hash FROM users WHERE email = ?`, email,
	), &hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or nil if not found.
func (db *ServerDB) GetUserByID(id string) (*User, error) {
	u, err := scanUser(db.conn.QueryRow(
		`SELECT id, email, role, metadata, created_at, updated_at FROM users WHERE id = ?`, id,
	), nil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email (case-insensitive), or nil if not found.
func (db *ServerDB) GetUserByEmail(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(db.conn.QueryRow(
		`SELECT id, email, role, metadata, created_at, updated_at FROM users WHERE LOWER(email) = ?`, email,
	), nil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EmailExists reports whether a user is registered under email.
func (db *ServerDB) EmailExists(email string) (bool, error) {
	u, err := db.GetUserByEmail(email)
	return u != nil, err
}

// ListUsers returns all users, optionally restricted to one role.
func (db *ServerDB) ListUsers(role string) ([]*User, error) {
	query := `SELECT id, email, role, metadata, created_at, updated_at FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: iterate: %w", err)
	}
	return users, nil
}

func scanUser(row scanner, hash *string) (*User, error) {
	u := &User{}
	var meta string
	dest := []any{&u.ID, &u.Email, &u.Role, &meta, &u.CreatedAt, &u.UpdatedAt}
	if hash != nil {
		dest = append(dest, hash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Metadata = map[string]string{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &u.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", u.ID, err)
		}
	}
	return u, nil
}

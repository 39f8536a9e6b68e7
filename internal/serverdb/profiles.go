package serverdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a referenced row does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyFinalized is returned when a profile's role record exists.
	ErrAlreadyFinalized = errors.New("profile already finalized")
	// ErrInvalidDetail is returned when a numeric detail is not a finite,
	// non-negative number.
	ErrInvalidDetail = errors.New("invalid detail")
)

// Profile is the per-user row created by the users insert trigger.
type Profile struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone"`
	Role        string     `json:"role"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Location is where a consultant or farmer is based.
type Location struct {
	Country  string
	Province string
	City     string
	Address  string
}

// FinalizeInput creates the role record for a freshly registered user.
type FinalizeInput struct {
	UserID    string
	ProfileID string
	Location  Location
	Details   map[string]string
	Documents map[string]string // field -> public URL
}

const profileColumns = `id, user_id, full_name, phone, role, avatar_url, finalized_at, created_at`

func scanProfile(row scanner) (*Profile, error) {
	p := &Profile{}
	if err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.Role, &p.AvatarURL, &p.FinalizedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProfileByUserID returns the profile for a user, or nil if the trigger
// has not produced it.
func (db *ServerDB) GetProfileByUserID(userID string) (*Profile, error) {
	p, err := scanProfile(db.conn.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetProfile returns a profile by ID, or nil if not found.
func (db *ServerDB) GetProfile(id string) (*Profile, error) {
	p, err := scanProfile(db.conn.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Finalize creates the consultant or farmer record for a profile and marks
// the profile finalized. The role comes from the profile row.
func (db *ServerDB) Finalize(in FinalizeInput) (*Profile, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	p, err := scanProfile(tx.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ? AND user_id = ?`, in.ProfileID, in.UserID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.FinalizedAt != nil {
		return nil, ErrAlreadyFinalized
	}

	docs := map[string]string{}
	for k, v := range in.Documents {
		if k == "avatar" {
			p.AvatarURL = v
			continue
		}
		docs[k] = v
	}

	switch p.Role {
	case RoleConsultant:
		err = insertConsultant(tx, p, in, docs)
	case RoleFarmer:
		err = claimOrInsertFarmer(tx, p, in)
	default:
		err = fmt.Errorf("profile role %q cannot be finalized", p.Role)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE profiles SET avatar_url = ?, finalized_at = ? WHERE id = ?`, p.AvatarURL, now, p.ID); err != nil {
		return nil, fmt.Errorf("mark finalized: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	p.FinalizedAt = &now
	return p, nil
}

func insertConsultant(tx *sql.Tx, p *Profile, in FinalizeInput, docs map[string]string) error {
	id, err := generateID("c_")
	if err != nil {
		return fmt.Errorf("generate consultant id: %w", err)
	}
	docJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	years, err := detailNumber(in.Details, "experience_years")
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO consultants
		(id, profile_id, user_id, qualification, specialization, experience_years, country, province, city, address, documents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.ID, p.UserID, in.Details["qualification"], in.Details["specialization"], years,
		in.Location.Country, in.Location.Province, in.Location.City, in.Location.Address, string(docJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert consultant: %w", err)
	}
	return nil
}

// claimOrInsertFarmer attaches the profile to a farmer row a consultant
// created earlier under the same email, or inserts a new row.
func claimOrInsertFarmer(tx *sql.Tx, p *Profile, in FinalizeInput) error {
	var email string
	if err := tx.QueryRow(`SELECT email FROM users WHERE id = ?`, p.UserID).Scan(&email); err != nil {
		return fmt.Errorf("load user email: %w", err)
	}
	size, err := detailNumber(in.Details, "farm_size")
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := tx.Exec(`UPDATE farmers SET profile_id = ?, user_id = ?, updated_at = ? WHERE email = ? AND user_id IS NULL`,
		p.ID, p.UserID, now, email)
	if err != nil {
		return fmt.Errorf("claim farmer: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	id, err := generateID("f_")
	if err != nil {
		return fmt.Errorf("generate farmer id: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO farmers
		(id, profile_id, user_id, full_name, email, phone, country, province, city, address, farm_name, farm_size_acres, crops, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.ID, p.UserID, p.FullName, email, p.Phone,
		in.Location.Country, in.Location.Province, in.Location.City, in.Location.Address,
		in.Details["farm_name"], size, in.Details["crops"], now, now,
	)
	if err != nil {
		return fmt.Errorf("insert farmer: %w", err)
	}
	return nil
}

// detailNumber reads a numeric detail. A missing or blank value is zero.
func detailNumber(details map[string]string, key string) (float64, error) {
	v := strings.TrimSpace(details[key])
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number, got %q", ErrInvalidDetail, key, v)
	}
	return n, nil
}

package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrFarmerLinked is returned when a farmer already has a consultant.
var ErrFarmerLinked = errors.New("farmer is already linked to a consultant")

// Farmer is a farmer record. ProfileID and UserID are empty for farmers a
// consultant created who never registered themselves.
type Farmer struct {
	ID            string    `json:"id"`
	ProfileID     string    `json:"profile_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Country       string    `json:"country"`
	Province      string    `json:"province"`
	City          string    `json:"city"`
	Address       string    `json:"address,omitempty"`
	FarmName      string    `json:"farm_name,omitempty"`
	FarmSizeAcres float64   `json:"farm_size_acres,omitempty"`
	Crops         string    `json:"crops,omitempty"`
	ConsultantID  string    `json:"consultant_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FarmerUpdate holds the fields to change; nil fields are left alone.
type FarmerUpdate struct {
	FullName      *string
	Phone         *string
	Country       *string
	Province      *string
	City          *string
	Address       *string
	FarmName      *string
	FarmSizeAcres *float64
	Crops         *string
}

const farmerColumns = `f.id, COALESCE(f.profile_id, ''), COALESCE(f.user_id, ''), f.full_name, f.email, f.phone,
	f.country, f.province, f.city, f.address, f.farm_name, f.farm_size_acres, f.crops,
	COALESCE(cf.consultant_id, ''), f.created_at, f.updated_at`

const farmerFrom = ` FROM farmers f LEFT JOIN consultant_farmers cf ON cf.farmer_id = f.id`

func scanFarmer(row scanner) (*Farmer, error) {
	f := &Farmer{}
	err := row.Scan(&f.ID, &f.ProfileID, &f.UserID, &f.FullName, &f.Email, &f.Phone,
		&f.Country, &f.Province, &f.City, &f.Address, &f.FarmName, &f.FarmSizeAcres, &f.Crops,
		&f.ConsultantID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CreateFarmer adds a farmer for a consultant and links them. If a farmer
// with the same email exists and has no consultant, that row is linked
// instead of creating a duplicate.
func (db *ServerDB) CreateFarmer(consultantID string, f Farmer) (*Farmer, error) {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	if f.Email == "" || strings.TrimSpace(f.FullName) == "" {
		return nil, fmt.Errorf("full name and email are required")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var existingID, linkedTo string
	err = tx.QueryRow(`SELECT f.id, COALESCE(cf.consultant_id, '')`+farmerFrom+` WHERE f.email = ?`, f.Email).
		Scan(&existingID, &linkedTo)
	switch {
	case err == sql.ErrNoRows:
		id, err := generateID("f_")
		if err != nil {
			return nil, fmt.Errorf("generate farmer id: %w", err)
		}
		now := time.Now().UTC()
		_, err = tx.Exec(`INSERT INTO farmers
			(id, full_name, email, phone, country, province, city, address, farm_name, farm_size_acres, crops, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, strings.TrimSpace(f.FullName), f.Email, f.Phone, f.Country, f.Province, f.City, f.Address,
			f.FarmName, f.FarmSizeAcres, f.Crops, now, now)
		if isUniqueViolation(err) {
			return nil, ErrFarmerLinked
		}
		if err != nil {
			return nil, fmt.Errorf("insert farmer: %w", err)
		}
		existingID = id
	case err != nil:
		return nil, fmt.Errorf("check farmer email: %w", err)
	case linkedTo != "":
		return nil, ErrFarmerLinked
	}

	if err := linkFarmer(tx, existingID, consultantID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return db.GetFarmer(existingID)
}

// linkFarmer links a farmer to a consultant. A farmer linked since the
// caller looked is reported as ErrFarmerLinked.
func linkFarmer(tx *sql.Tx, farmerID, consultantID string) error {
	_, err := tx.Exec(`INSERT INTO consultant_farmers (farmer_id, consultant_id, linked_at) VALUES (?, ?, ?)`,
		farmerID, consultantID, time.Now().UTC())
	if isUniqueViolation(err) {
		return ErrFarmerLinked
	}
	if err != nil {
		return fmt.Errorf("link farmer: %w", err)
	}
	return nil
}

// GetFarmer returns a farmer by ID, or nil if not found.
func (db *ServerDB) GetFarmer(id string) (*Farmer, error) {
	f, err := scanFarmer(db.conn.QueryRow(`SELECT `+farmerColumns+farmerFrom+` WHERE f.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get farmer: %w", err)
	}
	return f, nil
}

// GetFarmerByUserID returns the farmer record of a registered farmer, or nil.
func (db *ServerDB) GetFarmerByUserID(userID string) (*Farmer, error) {
	f, err := scanFarmer(db.conn.QueryRow(`SELECT `+farmerColumns+farmerFrom+` WHERE f.user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get farmer by user: %w", err)
	}
	return f, nil
}

// GetLinkedFarmer returns a farmer only if it is linked to consultantID.
func (db *ServerDB) GetLinkedFarmer(consultantID, farmerID string) (*Farmer, error) {
	f, err := db.GetFarmer(farmerID)
	if err != nil || f == nil {
		return nil, err
	}
	if f.ConsultantID != consultantID {
		return nil, nil
	}
	return f, nil
}

// ListFarmers returns the consultant's farmers matching q (name, email,
// phone, city or farm name) ordered by name, plus the total match count.
func (db *ServerDB) ListFarmers(consultantID, q string, limit, offset int) ([]*Farmer, int, error) {
	limit, offset = clampPage(limit, offset)
	where := ` WHERE cf.consultant_id = ?`
	args := []any{consultantID}
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where += ` AND (LOWER(f.full_name) LIKE ? OR f.email LIKE ? OR f.phone LIKE ? OR LOWER(f.city) LIKE ? OR LOWER(f.farm_name) LIKE ?)`
		args = append(args, like, like, like, like, like)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*)`+farmerFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count farmers: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+farmerColumns+farmerFrom+where+` ORDER BY f.full_name, f.id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list farmers: %w", err)
	}
	defer rows.Close()

	var farmers []*Farmer
	for rows.Next() {
		f, err := scanFarmer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan farmer: %w", err)
		}
		farmers = append(farmers, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list farmers: iterate: %w", err)
	}
	return farmers, total, nil
}

// UpdateFarmer applies u to a farmer linked to consultantID.
func (db *ServerDB) UpdateFarmer(consultantID, farmerID string, u FarmerUpdate) (*Farmer, error) {
	f, err := db.GetLinkedFarmer(consultantID, farmerID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}

	var sets []string
	var args []any
	str := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, strings.TrimSpace(*v))
		}
	}
	str("full_name", u.FullName)
	str("phone", u.Phone)
	str("country", u.Country)
	str("province", u.Province)
	str("city", u.City)
	str("address", u.Address)
	str("farm_name", u.FarmName)
	str("crops", u.Crops)
	if u.FarmSizeAcres != nil {
		sets = append(sets, "farm_size_acres = ?")
		args = append(args, *u.FarmSizeAcres)
	}
	if len(sets) == 0 {
		return f, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), farmerID)
	if _, err := db.conn.Exec(`UPDATE farmers SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update farmer: %w", err)
	}
	return db.GetFarmer(farmerID)
}

// DeleteFarmer removes a farmer linked to consultantID. Farmers with their
// own account are only unlinked.
func (db *ServerDB) DeleteFarmer(consultantID, farmerID string) error {
	f, err := db.GetLinkedFarmer(consultantID, farmerID)
	if err != nil {
		return err
	}
	if f == nil {
		return ErrNotFound
	}
	if f.UserID != "" {
		_, err = db.conn.Exec(`DELETE FROM consultant_farmers WHERE farmer_id = ?`, farmerID)
	} else {
		_, err = db.conn.Exec(`DELETE FROM farmers WHERE id = ?`, farmerID)
	}
	if err != nil {
		return fmt.Errorf("delete farmer: %w", err)
	}
	return nil
}

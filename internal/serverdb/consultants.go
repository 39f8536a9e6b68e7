package serverdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Consultant is the role record of a finalized consultant profile.
type Consultant struct {
	ID              string            `json:"id"`
	ProfileID       string            `json:"profile_id"`
	UserID          string            `json:"user_id"`
	Qualification   string            `json:"qualification"`
	Specialization  string            `json:"specialization,omitempty"`
	ExperienceYears float64           `json:"experience_years"`
	Country         string            `json:"country"`
	Province        string            `json:"province"`
	City            string            `json:"city"`
	Address         string            `json:"address,omitempty"`
	Documents       map[string]string `json:"documents,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// GetConsultantByUserID returns the consultant record for a user, or nil.
func (db *ServerDB) GetConsultantByUserID(userID string) (*Consultant, error) {
	c := &Consultant{}
	var docs string
	err := db.conn.QueryRow(`SELECT id, profile_id, user_id, qualification, specialization, experience_years,
		country, province, city, address, documents, created_at
		FROM consultants WHERE user_id = ?`, userID,
	).Scan(&c.ID, &c.ProfileID, &c.UserID, &c.Qualification, &c.Specialization, &c.ExperienceYears,
		&c.Country, &c.Province, &c.City, &c.Address, &docs, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get consultant: %w", err)
	}
	if err := json.Unmarshal([]byte(docs), &c.Documents); err != nil {
		return nil, fmt.Errorf("decode consultant documents: %w", err)
	}
	return c, nil
}

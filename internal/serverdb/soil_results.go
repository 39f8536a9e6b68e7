package serverdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SoilResult is one stored classification of a soil image.
type SoilResult struct {
	ID            string             `json:"id"`
	FarmerID      string             `json:"farmer_id"`
	SubmittedBy   string             `json:"submitted_by"`
	ImageURL      string             `json:"image_url"`
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// CreateSoilResult stores a classification. ID and CreatedAt are assigned.
func (db *ServerDB) CreateSoilResult(r SoilResult) (*SoilResult, error) {
	probs, err := json.Marshal(r.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("encode probabilities: %w", err)
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	_, err = db.conn.Exec(`INSERT INTO soil_results
		(id, farmer_id, submitted_by, image_url, label, confidence, probabilities, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FarmerID, r.SubmittedBy, r.ImageURL, r.Label, r.Confidence, string(probs), r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert soil result: %w", err)
	}
	return &r, nil
}

const soilColumns = `s.id, s.farmer_id, s.submitted_by, s.image_url, s.label, s.confidence, s.probabilities, s.created_at`

func scanSoilResult(row scanner) (*SoilResult, error) {
	r := &SoilResult{}
	var probs string
	if err := row.Scan(&r.ID, &r.FarmerID, &r.SubmittedBy, &r.ImageURL, &r.Label, &r.Confidence, &probs, &r.CreatedAt); err != nil {
		return nil, err
	}
	if probs != "" && probs != "null" {
		if err := json.Unmarshal([]byte(probs), &r.Probabilities); err != nil {
			return nil, fmt.Errorf("decode probabilities for %s: %w", r.ID, err)
		}
	}
	return r, nil
}

// GetSoilResult returns a result by ID, or nil if not found.
func (db *ServerDB) GetSoilResult(id string) (*SoilResult, error) {
	r, err := scanSoilResult(db.conn.QueryRow(`SELECT `+soilColumns+` FROM soil_results s WHERE s.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get soil result: %w", err)
	}
	return r, nil
}

// SoilFilter selects which results ListSoilResults returns. Exactly one of
// FarmerID or ConsultantID scopes the query; FarmerID may narrow a
// consultant's results to one farmer.
type SoilFilter struct {
	FarmerID     string
	ConsultantID string
	Limit        int
	Offset       int
}

// ListSoilResults returns results newest first.
func (db *ServerDB) ListSoilResults(f SoilFilter) ([]*SoilResult, error) {
	limit, offset := clampPage(f.Limit, f.Offset)
	query := `SELECT ` + soilColumns + ` FROM soil_results s`
	var conds []string
	var args []any
	if f.ConsultantID != "" {
		query += ` JOIN consultant_farmers cf ON cf.farmer_id = s.farmer_id`
		conds = append(conds, "cf.consultant_id = ?")
		args = append(args, f.ConsultantID)
	}
	if f.FarmerID != "" {
		conds = append(conds, "s.farmer_id = ?")
		args = append(args, f.FarmerID)
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("list soil results: no scope given")
	}
	query += " WHERE " + conds[0]
	for _, c := range conds[1:] {
		query += " AND " + c
	}
	query += ` ORDER BY s.created_at DESC, s.id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list soil results: %w", err)
	}
	defer rows.Close()

	var out []*SoilResult
	for rows.Next() {
		r, err := scanSoilResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan soil result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list soil results: iterate: %w", err)
	}
	return out, nil
}

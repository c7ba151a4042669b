package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gymbody/internal/domain"
	"gymbody/internal/models"
)

const incidentColumns = `id, gym_id, category, title, staff_id, staff_name, status, created_at`

func scanIncident(row rowScanner) (*models.Incident, error) {
	var inc models.Incident
	err := row.Scan(&inc.ID, &inc.GymID, &inc.Category, &inc.Title, &inc.StaffID, &inc.StaffName, &inc.Status, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}
	inc.CreatedAt = inc.CreatedAt.UTC()
	return &inc, nil
}

// CreateIncident stores the entry and its notes in one transaction.
func (db *DB) CreateIncident(ctx context.Context, inc *models.Incident) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO incidents (`+incidentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.GymID, inc.Category, inc.Title, inc.StaffID, inc.StaffName, inc.Status, inc.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	for _, n := range inc.Notes {
		if err := insertIncidentNote(ctx, tx, inc.ID, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertIncidentNote(ctx context.Context, ex execer, incidentID string, n models.IncidentNote) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO incident_notes (incident_id, text, staff_id, staff_name, created_at)
        VALUES (?, ?, ?, ?, ?)`, incidentID, n.Text, n.StaffID, n.StaffName, n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add note to incident %s: %w", incidentID, err)
	}
	return nil
}

func (db *DB) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := scanIncident(db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	if err := db.attachNotes(ctx, `WHERE incident_id = ?`, id, map[string]*models.Incident{inc.ID: inc}); err != nil {
		return nil, err
	}
	return inc, nil
}

// GetIncidents returns a gym's log, newest first, with notes attached.
func (db *DB) GetIncidents(ctx context.Context, gymID string) ([]*models.Incident, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE gym_id = ? ORDER BY created_at DESC, id`, gymID)
	if err != nil {
		return nil, fmt.Errorf("failed to get incidents: %w", err)
	}
	defer rows.Close()

	var list []*models.Incident
	byID := make(map[string]*models.Incident)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		list = append(list, inc)
		byID[inc.ID] = inc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	where := `WHERE incident_id IN (SELECT id FROM incidents WHERE gym_id = ?)`
	if err := db.attachNotes(ctx, where, gymID, byID); err != nil {
		return nil, err
	}
	return list, nil
}

func (db *DB) attachNotes(ctx context.Context, where, arg string, byID map[string]*models.Incident) error {
	rows, err := db.QueryContext(ctx, `SELECT incident_id, text, staff_id, staff_name, created_at FROM incident_notes `+where+` ORDER BY id`, arg)
	if err != nil {
		return fmt.Errorf("failed to get incident notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			incidentID string
			n          models.IncidentNote
		)
		if err := rows.Scan(&incidentID, &n.Text, &n.StaffID, &n.StaffName, &n.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan incident note: %w", err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		if inc, ok := byID[incidentID]; ok {
			inc.Notes = append(inc.Notes, n)
		}
	}
	return rows.Err()
}

func (db *DB) AddIncidentNote(ctx context.Context, incidentID string, n models.IncidentNote) error {
	if _, err := db.GetIncident(ctx, incidentID); err != nil {
		return err
	}
	return insertIncidentNote(ctx, db.DB, incidentID, n)
}

func (db *DB) SetIncidentStatus(ctx context.Context, incidentID string, status models.IncidentStatus) error {
	res, err := db.ExecContext(ctx, `UPDATE incidents SET status = ? WHERE id = ?`, status, incidentID)
	if err != nil {
		return fmt.Errorf("failed to update incident %s: %w", incidentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrIncidentNotFound
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbody/internal/domain"
	"gymbody/internal/models"
)

const memberColumns = `id, gym_id, name, phone, status, plan, last_visit, image, expiry_date, chat_id`

func scanMember(row rowScanner) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.GymID, &m.Name, &m.Phone, &m.Status, &m.Plan, &m.LastVisit, &m.Image, &m.ExpiryDate, &m.ChatID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) GetMembers(ctx context.Context, gymID string) ([]*models.Member, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members WHERE gym_id = ? ORDER BY name`, gymID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (db *DB) GetMember(ctx context.Context, id string) (*models.Member, error) {
	m, err := scanMember(db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}
	return m, nil
}

func (db *DB) UpsertMember(ctx context.Context, m *models.Member) error {
	query := `INSERT INTO members (` + memberColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            gym_id = excluded.gym_id,
            name = excluded.name,
            phone = excluded.phone,
            status = excluded.status,
            plan = excluded.plan,
            last_visit = excluded.last_visit,
            image = excluded.image,
            expiry_date = excluded.expiry_date,
            chat_id = excluded.chat_id`
	_, err := db.ExecContext(ctx, query,
		m.ID, m.GymID, m.Name, m.Phone, m.Status, m.Plan, m.LastVisit, m.Image, m.ExpiryDate, m.ChatID)
	if err != nil {
		return fmt.Errorf("failed to upsert member %s: %w", m.ID, err)
	}
	return nil
}

// RecordVisit logs a check-in and stamps the member's last visit.
func (db *DB) RecordVisit(ctx context.Context, memberID string, at time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `UPDATE members SET last_visit = ? WHERE id = ?`, at.Format("2006-01-02 15:04"), memberID)
	if err != nil {
		return fmt.Errorf("failed to update last visit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMemberNotFound
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO visits (member_id, visited_at) VALUES (?, ?)`, memberID, at); err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}
	return tx.Commit()
}

func (db *DB) GetPayment(ctx context.Context, memberID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := db.QueryRowContext(ctx,
		`SELECT member_id, balance, payment_status, due_date, updated_at FROM payments WHERE member_id = ?`, memberID,
	).Scan(&p.MemberID, &p.Balance, &p.PaymentStatus, &p.DueDate, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment for %s: %w", memberID, err)
	}
	return &p, nil
}

// GetPayments lists members of a gym with their billing record. Members without one
// are reported as paid with a zero balance.
func (db *DB) GetPayments(ctx context.Context, gymID string) ([]*models.MemberPayment, error) {
	query := `SELECT m.id, m.gym_id, m.name, m.phone, m.status, m.plan, m.last_visit, m.image, m.expiry_date, m.chat_id,
               COALESCE(p.balance, 0), COALESCE(p.payment_status, ?), COALESCE(p.due_date, ''), p.updated_at
        FROM members m LEFT JOIN payments p ON p.member_id = m.id
        WHERE m.gym_id = ?
        ORDER BY m.name`
	rows, err := db.QueryContext(ctx, query, models.PaymentPaid, gymID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var out []*models.MemberPayment
	for rows.Next() {
		var mp models.MemberPayment
		var updated sql.NullTime
		err := rows.Scan(
			&mp.Member.ID, &mp.GymID, &mp.Name, &mp.Phone, &mp.Status, &mp.Plan, &mp.LastVisit, &mp.Image, &mp.ExpiryDate, &mp.ChatID,
			&mp.Balance, &mp.PaymentStatus, &mp.DueDate, &updated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		mp.MemberID = mp.Member.ID
		mp.UpdatedAt = updated.Time
		out = append(out, &mp)
	}
	return out, rows.Err()
}

func (db *DB) UpsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	query := `INSERT INTO payments (member_id, balance, payment_status, due_date, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(member_id) DO UPDATE SET
            balance = excluded.balance,
            payment_status = excluded.payment_status,
            due_date = excluded.due_date,
            updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, p.MemberID, p.Balance, p.PaymentStatus, p.DueDate, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert payment for %s: %w", p.MemberID, err)
	}
	return nil
}

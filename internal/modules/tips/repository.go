package tips

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository provides persistence for tips over the tips table.
// Dates are stored as RFC 3339 text so the date index doubles as a
// day-prefix lookup.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new tip repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "tip-repository").Logger(),
	}
}

// Add creates a new tip with a fresh identifier, marked unsynced.
func (r *Repository) Add(amount decimal.Decimal, date time.Time, note string) (*Tip, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}

	tip := &Tip{
		ID:     uuid.New().String(),
		Amount: amount,
		Date:   date,
		Note:   note,
		Synced: false,
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(
		`INSERT INTO tips (id, amount, date, note, synced, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		tip.ID, tip.Amount.String(), tip.Date.Format(time.RFC3339), tip.Note, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tip: %w", err)
	}

	return tip, nil
}

// Update fully replaces a tip by identifier. No history is kept.
func (r *Repository) Update(tip Tip) error {
	if tip.Amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, tip.Amount)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.Exec(
		`UPDATE tips SET amount = ?, date = ?, note = ?, synced = ?, updated_at = ? WHERE id = ?`,
		tip.Amount.String(), tip.Date.Format(time.RFC3339), tip.Note, boolToInt(tip.Synced), now, tip.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tip %s: %w", tip.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("tip %s: %w", tip.ID, ErrNotFound)
	}

	return nil
}

// Upsert inserts or fully replaces a tip, keeping its identifier.
// Used when persisting merge results.
func (r *Repository) Upsert(tip Tip) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(
		`INSERT INTO tips (id, amount, date, note, synced, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   amount = excluded.amount,
		   date = excluded.date,
		   note = excluded.note,
		   synced = excluded.synced,
		   updated_at = excluded.updated_at`,
		tip.ID, tip.Amount.String(), tip.Date.Format(time.RFC3339), tip.Note,
		boolToInt(tip.Synced), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tip %s: %w", tip.ID, err)
	}
	return nil
}

// Delete removes a tip by identifier. Deleting an unknown id is not an error.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM tips WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete tip %s: %w", id, err)
	}
	return nil
}

// GetByID returns one tip, or nil when absent.
func (r *Repository) GetByID(id string) (*Tip, error) {
	row := r.db.QueryRow(
		"SELECT id, amount, date, note, synced FROM tips WHERE id = ?", id,
	)

	tip, err := scanTip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tip %s: %w", id, err)
	}
	return tip, nil
}

// ListAll returns every tip ordered by date.
func (r *Repository) ListAll() ([]Tip, error) {
	return r.list("SELECT id, amount, date, note, synced FROM tips ORDER BY date")
}

// ListByDate returns the tips on one calendar day, using the date-prefix
// index rather than a full scan.
func (r *Repository) ListByDate(day time.Time) ([]Tip, error) {
	prefix := day.Format("2006-01-02") + "%"
	return r.list(
		"SELECT id, amount, date, note, synced FROM tips WHERE date LIKE ? ORDER BY date",
		prefix,
	)
}

// ListUnsynced returns tips not yet pushed to the mirror.
func (r *Repository) ListUnsynced() ([]Tip, error) {
	return r.list("SELECT id, amount, date, note, synced FROM tips WHERE synced = 0 ORDER BY date")
}

// MarkSynced flips the synced flag in place for the given identifiers.
func (r *Repository) MarkSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if _, err := r.db.Exec(
			"UPDATE tips SET synced = 1, updated_at = ? WHERE id = ?", now, id,
		); err != nil {
			return fmt.Errorf("failed to mark tip %s synced: %w", id, err)
		}
	}
	return nil
}

func (r *Repository) list(query string, args ...interface{}) ([]Tip, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tips: %w", err)
	}
	defer rows.Close()

	tips := make([]Tip, 0)
	for rows.Next() {
		tip, err := scanTip(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan tip row")
			continue
		}
		tips = append(tips, *tip)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tips: %w", err)
	}
	return tips, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTip(s scanner) (*Tip, error) {
	var id, amountStr, dateStr, note string
	var synced int

	if err := s.Scan(&id, &amountStr, &dateStr, &note, &synced); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q for tip %s: %w", amountStr, id, err)
	}

	date, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q for tip %s: %w", dateStr, id, err)
	}

	return &Tip{
		ID:     id,
		Amount: amount,
		Date:   date,
		Note:   note,
		Synced: synced != 0,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

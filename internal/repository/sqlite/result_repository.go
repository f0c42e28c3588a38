package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"visionserver/internal/apperror"
	"visionserver/internal/model"
)

// ResultRepository implements repository.ResultRepository for SQLite.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new SQLite result repository.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `id, created_at, image_file, json_file, source_digest, source_size`

// Insert stores a record and its detections in one transaction.
func (r *ResultRepository) Insert(ctx context.Context, record *model.ResultRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (id, created_at, image_file, json_file, count, source_digest, source_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.CreatedAt.UTC(), record.ImageFile, record.JSONFile, record.Count(), record.SourceDigest, record.SourceSize); err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	if err := insertDetections(ctx, tx, record.ID, record.Detections); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a record with its detections.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*model.ResultRecord, error) {
	return r.getOne(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
}

// FindByDigest returns the most recent record created from an upload with the given digest.
func (r *ResultRepository) FindByDigest(ctx context.Context, digest string) (*model.ResultRecord, error) {
	return r.getOne(ctx, `SELECT `+resultColumns+` FROM results WHERE source_digest = ? ORDER BY created_at DESC LIMIT 1`, digest)
}

func (r *ResultRepository) getOne(ctx context.Context, query string, arg any) (*model.ResultRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var rec model.ResultRecord
	err := r.db.Conn().QueryRowContext(ctx, query, arg).
		Scan(&rec.ID, &rec.CreatedAt, &rec.ImageFile, &rec.JSONFile, &rec.SourceDigest, &rec.SourceSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Newf(apperror.KindNotFound, "get result", "no result for %v", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	byResult, err := loadDetections(ctx, r.db.Conn(), []string{rec.ID})
	if err != nil {
		return nil, err
	}
	rec.Detections = byResult[rec.ID]
	return &rec, nil
}

// List retrieves records, newest first, matching the filter.
func (r *ResultRepository) List(ctx context.Context, filter *model.ResultFilter) ([]model.ResultRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	query := `SELECT ` + resultColumns + ` FROM results` + where + ` ORDER BY created_at DESC, id`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	records := make([]model.ResultRecord, 0)
	for rows.Next() {
		var rec model.ResultRecord
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.ImageFile, &rec.JSONFile, &rec.SourceDigest, &rec.SourceSize); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	byResult, err := loadDetections(ctx, r.db.Conn(), ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Detections = byResult[records[i].ID]
	}
	return records, nil
}

// Count returns the number of records matching the filter, ignoring paging.
func (r *ResultRepository) Count(ctx context.Context, filter *model.ResultFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := filterClause(filter)
	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM results`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// Exists reports whether a record with the id is stored.
func (r *ResultRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check result existence: %w", err)
	}
	return count > 0, nil
}

// Delete removes a record and, through the foreign key, its detections.
func (r *ResultRepository) Delete(ctx context.Context, id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM results WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

func filterClause(filter *model.ResultFilter) (string, []any) {
	if filter == nil || filter.Class == "" {
		return "", nil
	}
	return ` WHERE id IN (SELECT result_id FROM detections WHERE class_name = ?)`, []any{filter.Class}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"visionserver/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// ClassNames returns every class name that has been detected, sorted.
func (r *DetectionRepository) ClassNames(ctx context.Context) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT DISTINCT class_name FROM detections ORDER BY class_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query class names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan class name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CountByClass returns the number of stored detections per class.
func (r *DetectionRepository) CountByClass(ctx context.Context) (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT class_name, COUNT(*) FROM detections GROUP BY class_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan class count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

func insertDetections(ctx context.Context, tx *sql.Tx, resultID string, detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (result_id, position, class_name, confidence, x1, y1, x2, y2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, d := range detections {
		if _, err := stmt.ExecContext(ctx, resultID, i, d.Class, d.Confidence, d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return nil
}

// loadDetections returns the detections of each result id in emission order.
// Every requested id maps to a non-nil slice.
func loadDetections(ctx context.Context, conn *sql.DB, ids []string) (map[string][]model.Detection, error) {
	byResult := make(map[string][]model.Detection, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		byResult[id] = []model.Detection{}
		args[i] = id
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT result_id, class_name, confidence, x1, y1, x2, y2
		FROM detections WHERE result_id IN (`+placeholders(len(ids))+`)
		ORDER BY result_id, position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var d model.Detection
		if err := rows.Scan(&id, &d.Class, &d.Confidence, &d.BBox[0], &d.BBox[1], &d.BBox[2], &d.BBox[3]); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		byResult[id] = append(byResult[id], d)
	}
	return byResult, rows.Err()
}

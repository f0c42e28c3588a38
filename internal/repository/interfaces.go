package repository

import (
	"context"

	"visionserver/internal/model"
)

// ResultRepository indexes persisted predictions. Lookups of unknown ids or
// digests fail with apperror.ErrNotFound.
type ResultRepository interface {
	// Create operations
	Insert(ctx context.Context, record *model.ResultRecord) error

	// Read operations
	GetByID(ctx context.Context, id string) (*model.ResultRecord, error)
	FindByDigest(ctx context.Context, digest string) (*model.ResultRecord, error)
	List(ctx context.Context, filter *model.ResultFilter) ([]model.ResultRecord, error)
	Count(ctx context.Context, filter *model.ResultFilter) (int, error)
	Exists(ctx context.Context, id string) (bool, error)

	// Delete operations
	Delete(ctx context.Context, id string) error
}

// DetectionRepository answers per-class questions over the stored detections.
type DetectionRepository interface {
	ClassNames(ctx context.Context) ([]string, error)
	CountByClass(ctx context.Context) (map[string]int, error)
}

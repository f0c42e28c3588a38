package service

import (
	"context"
	"encoding/json"
	"strings"

	"visionserver/internal/dto"
	"visionserver/internal/logger"
	"visionserver/internal/model"
	"visionserver/internal/repository"
	"visionserver/internal/service/storage"
)

// ReindexReport counts what Reindex did with each JSON record.
type ReindexReport struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Reindex inserts every JSON record in store that the history does not know
// yet. Records written before indexing was enabled have no source digest.
func Reindex(ctx context.Context, store *storage.ArtifactStore, results repository.ResultRepository, logger *logger.Logger) (ReindexReport, error) {
	var report ReindexReport

	names, err := store.List(model.ArtifactJSON)
	if err != nil {
		return report, err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		id := strings.TrimSuffix(strings.TrimPrefix(name, "detection_"), "."+string(model.ArtifactJSON))
		exists, err := results.Exists(ctx, id)
		if err != nil {
			return report, err
		}
		if exists {
			report.Skipped++
			continue
		}

		record, err := readRecord(store, name)
		if err != nil {
			logger.Warning("Skipping %s: %v", name, err)
			report.Failed++
			continue
		}
		info, err := store.Stat(name)
		if err != nil {
			logger.Warning("Skipping %s: %v", name, err)
			report.Failed++
			continue
		}

		err = results.Insert(ctx, &model.ResultRecord{
			ID:         id,
			CreatedAt:  info.ModTime().UTC(),
			ImageFile:  record.ImageFile,
			JSONFile:   name,
			Detections: record.Detections,
		})
		if err != nil {
			logger.Error("Indexing %s failed: %v", name, err)
			report.Failed++
			continue
		}
		report.Inserted++
	}

	logger.Info("Reindex finished: %d inserted, %d skipped, %d failed", report.Inserted, report.Skipped, report.Failed)
	return report, nil
}

func readRecord(store *storage.ArtifactStore, name string) (*dto.DetectionRecord, error) {
	data, err := store.Get(name)
	if err != nil {
		return nil, err
	}
	var record dto.DetectionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if record.Detections == nil {
		record.Detections = []model.Detection{}
	}
	return &record, nil
}

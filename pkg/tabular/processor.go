// Package tabular ingests CSV and Excel uploads: it stores the raw file,
// validates each row and persists the survivors alongside the failures.
package tabular

import (
	"context"
	"errors"
	"fmt"

	"docintake/models"
	"docintake/pkg/audit"
	"docintake/pkg/logger"
	"docintake/pkg/storage"

	"gorm.io/gorm"
)

// ErrMissingParams is returned when either provenance parameter is absent.
var ErrMissingParams = errors.New("parametro1 and parametro2 are required for tabular files")

type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	// Param1 and Param2 are nil when the caller did not send them. An empty
	// value is accepted.
	Param1 *string
	Param2 *string
	// UploadedBy is the uploader's token subject.
	UploadedBy string
}

type Result struct {
	FileID      uint         `json:"file_id"`
	StoragePath string       `json:"storage_path"`
	RowsSaved   int          `json:"rows_saved"`
	Validations []Validation `json:"validations"`
}

type Processor struct {
	db    *gorm.DB
	store storage.Store
	audit audit.Recorder
	log   *logger.Logger
}

func NewProcessor(db *gorm.DB, store storage.Store, rec audit.Recorder, log *logger.Logger) *Processor {
	return &Processor{db: db, store: store, audit: rec, log: log.With("component", "tabular")}
}

// Process stores, validates and persists one tabular upload.
func (p *Processor) Process(ctx context.Context, up Upload) (*Result, error) {
	if up.Param1 == nil || up.Param2 == nil {
		return nil, ErrMissingParams
	}

	uri, err := p.store.Put(ctx, storage.Key(storage.PrefixUploads, up.FileName), up.Data, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	records, err := Parse(up.Data, IsExcel(up.FileName, up.ContentType))
	if err != nil {
		return nil, err
	}
	rows, validations := Validate(records)
	if validations == nil {
		validations = []Validation{}
	}

	file := models.File{
		FileName:    up.FileName,
		StoragePath: uri,
		ContentType: up.ContentType,
		UploadedBy:  up.UploadedBy,
		Param1:      *up.Param1,
		Param2:      *up.Param2,
		RowsSaved:   len(rows),
		ErrorCount:  len(validations),
	}
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&file).Error; err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
		if len(rows) > 0 {
			dataRows := make([]models.DataRow, 0, len(rows))
			for _, r := range rows {
				dataRows = append(dataRows, models.DataRow{
					FileID:     file.ID,
					ExternalID: r.ExternalID,
					Name:       r.Name,
					Price:      r.Price.InexactFloat64(),
					UploadedBy: up.UploadedBy,
				})
			}
			if err := tx.CreateInBatches(dataRows, 200).Error; err != nil {
				return fmt.Errorf("insert rows: %w", err)
			}
		}
		if len(validations) > 0 {
			fvs := make([]models.FileValidation, 0, len(validations))
			for _, v := range validations {
				fvs = append(fvs, models.FileValidation{
					FileID:     file.ID,
					RowNumber:  v.Row,
					ColumnName: v.Column,
					ErrorCode:  v.Error,
					Message:    v.Message,
				})
			}
			if err := tx.CreateInBatches(fvs, 200).Error; err != nil {
				return fmt.Errorf("insert validations: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("tabular upload processed",
		"file_id", file.ID, "filename", up.FileName, "rows", len(records), "rows_saved", len(rows), "errors", len(validations))

	var uid *string
	if up.UploadedBy != "" {
		uid = &up.UploadedBy
	}
	p.audit.Record(ctx, audit.Event{
		Type:        audit.DocumentUpload,
		Description: fmt.Sprintf("Tabular file %s uploaded", up.FileName),
		UserID:      uid,
		Metadata: map[string]any{
			"filename":   up.FileName,
			"kind":       "tabular",
			"file_id":    file.ID,
			"rows_saved": len(rows),
			"errors":     len(validations),
		},
	})

	return &Result{
		FileID:      file.ID,
		StoragePath: uri,
		RowsSaved:   len(rows),
		Validations: validations,
	}, nil
}

// Package documents stores non-tabular uploads, runs them through the
// classifier and keeps the resulting analyses editable.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docintake/models"
	"docintake/pkg/audit"
	"docintake/pkg/classifier"
	"docintake/pkg/logger"
	"docintake/pkg/storage"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("analysis not found")

// pdfcpu must not create a config dir under the service user's home.
func init() { api.DisableConfigDir() }

type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	// UploadedBy is the uploader's token subject.
	UploadedBy string
}

// Outcome is the result of one document upload. AnalysisID and Analysis are
// nil when classification failed; AIError is nil when it succeeded.
type Outcome struct {
	DocumentID  uint      `json:"document_id"`
	AnalysisID  *uint     `json:"analysis_id"`
	StoragePath string    `json:"storage_path"`
	AIStatus    string    `json:"ai_status"`
	AIError     *string   `json:"ai_error"`
	Analysis    *Analysis `json:"analysis"`
}

// Record is a stored analysis.
type Record struct {
	ID         uint `json:"id"`
	DocumentID uint `json:"document_id"`
	Analysis
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Service struct {
	db         *gorm.DB
	store      storage.Store
	classifier classifier.Classifier
	audit      audit.Recorder
	log        *logger.Logger
}

func NewService(db *gorm.DB, store storage.Store, c classifier.Classifier, rec audit.Recorder, log *logger.Logger) *Service {
	return &Service{db: db, store: store, classifier: c, audit: rec, log: log.With("component", "documents")}
}

// AnalyzeAndStore saves the document and attempts classification. A
// classifier failure is recorded on the document and never rolls back the
// file save.
func (s *Service) AnalyzeAndStore(ctx context.Context, up Upload) (*Outcome, error) {
	uri, err := s.store.Put(ctx, storage.Key(storage.PrefixDocuments, up.FileName), up.Data, up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := models.Document{
		FileName:    up.FileName,
		StoragePath: uri,
		ContentType: up.ContentType,
		UploadedBy:  up.UploadedBy,
		PageCount:   s.pageCount(up),
		AIStatus:    models.AIStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	out := &Outcome{DocumentID: doc.ID, StoragePath: uri, AIStatus: models.AIStatusPending}
	// The document row exists from here on: its status must settle and the
	// upload must be audited even if the request is cancelled midway.
	dbCtx := context.WithoutCancel(ctx)
	defer s.recordUpload(ctx, up, doc, out)

	analysis, classifyErr := s.classify(ctx, up)
	if classifyErr != nil {
		s.log.Warn("document analysis failed", "document_id", doc.ID, "filename", up.FileName, "error", classifyErr)
		if err := s.markFailed(dbCtx, &doc, out, classifyErr); err != nil {
			return nil, err
		}
		return out, nil
	}

	row, err := toModel(doc.ID, analysis)
	if err == nil {
		err = s.db.WithContext(dbCtx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("insert analysis: %w", err)
			}
			return tx.Model(&doc).Update("ai_status", models.AIStatusAnalyzed).Error
		})
	}
	if err != nil {
		err = fmt.Errorf("persist analysis for document %d: %w", doc.ID, err)
		if markErr := s.markFailed(dbCtx, &doc, out, err); markErr != nil {
			return nil, errors.Join(err, markErr)
		}
		return nil, err
	}
	out.AIStatus = models.AIStatusAnalyzed
	out.AnalysisID = &row.ID
	out.Analysis = analysis
	return out, nil
}

// markFailed records cause as the document's ai_error and mirrors it on out.
func (s *Service) markFailed(ctx context.Context, doc *models.Document, out *Outcome, cause error) error {
	reason := cause.Error()
	err := s.db.WithContext(ctx).Model(doc).Updates(map[string]any{
		"ai_status": models.AIStatusFailed,
		"ai_error":  reason,
	}).Error
	if err != nil {
		return fmt.Errorf("mark document %d failed: %w", doc.ID, err)
	}
	out.AIStatus = models.AIStatusFailed
	out.AIError = &reason
	return nil
}

func (s *Service) classify(ctx context.Context, up Upload) (*Analysis, error) {
	res, err := s.classifier.Classify(ctx, classifier.Input{
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Data:        up.Data,
	})
	if err != nil {
		return nil, err
	}
	return Normalize(res)
}

// pageCount returns the page count of a PDF, 0 for anything else or on error.
func (s *Service) pageCount(up Upload) int {
	in := classifier.Input{ContentType: up.ContentType, Data: up.Data}
	if in.MIMEType() != "application/pdf" && !strings.HasSuffix(strings.ToLower(up.FileName), ".pdf") {
		return 0
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(up.Data), conf)
	if err != nil {
		s.log.Warn("pdf page count failed", "filename", up.FileName, "error", err)
		return 0
	}
	return n
}

func (s *Service) recordUpload(ctx context.Context, up Upload, doc models.Document, out *Outcome) {
	var uid *string
	if up.UploadedBy != "" {
		uid = &up.UploadedBy
	}
	s.audit.Record(ctx, audit.Event{
		Type:        audit.DocumentUpload,
		Description: fmt.Sprintf("Document %s uploaded", up.FileName),
		UserID:      uid,
		Metadata: map[string]any{
			"filename":    up.FileName,
			"kind":        "document",
			"document_id": doc.ID,
			"ai_status":   out.AIStatus,
			"pages":       doc.PageCount,
		},
	})
	if out.AIStatus != models.AIStatusAnalyzed {
		return
	}
	s.audit.Record(ctx, audit.Event{
		Type:        audit.AIAnalysis,
		Description: fmt.Sprintf("Document %s classified as %s", up.FileName, out.Analysis.Classification),
		UserID:      uid,
		Metadata: map[string]any{
			"document_id":    doc.ID,
			"analysis_id":    *out.AnalysisID,
			"classification": out.Analysis.Classification,
		},
	})
}

func toModel(documentID uint, a *Analysis) (*models.DocumentAnalysis, error) {
	products, err := encodeProducts(a.Products)
	if err != nil {
		return nil, err
	}
	return &models.DocumentAnalysis{
		DocumentID:      documentID,
		Classification:  a.Classification,
		ClientName:      a.ClientName,
		ClientAddress:   a.ClientAddress,
		ProviderName:    a.ProviderName,
		ProviderAddress: a.ProviderAddress,
		InvoiceNumber:   a.InvoiceNumber,
		InvoiceDate:     a.InvoiceDate,
		TotalAmount:     a.TotalAmount,
		Products:        products,
		Description:     a.Description,
		Summary:         a.Summary,
		Sentiment:       a.Sentiment,
	}, nil
}

// encodeProducts serializes the list; nil is stored as [].
func encodeProducts(p []ProductLine) (datatypes.JSON, error) {
	if p == nil {
		p = []ProductLine{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	return datatypes.JSON(b), nil
}

func toRecord(m *models.DocumentAnalysis, log *logger.Logger) *Record {
	var products []ProductLine
	if len(m.Products) > 0 {
		if err := json.Unmarshal(m.Products, &products); err != nil {
			log.Warn("stored products unreadable", "analysis_id", m.ID, "error", err)
			products = nil
		}
	}
	switch {
	case m.Classification == classifier.Invoice && products == nil:
		products = []ProductLine{}
	case m.Classification != classifier.Invoice && len(products) == 0:
		products = nil
	}
	return &Record{
		ID:         m.ID,
		DocumentID: m.DocumentID,
		Analysis: Analysis{
			Classification:  m.Classification,
			ClientName:      m.ClientName,
			ClientAddress:   m.ClientAddress,
			ProviderName:    m.ProviderName,
			ProviderAddress: m.ProviderAddress,
			InvoiceNumber:   m.InvoiceNumber,
			InvoiceDate:     m.InvoiceDate,
			TotalAmount:     m.TotalAmount,
			Products:        products,
			Description:     m.Description,
			Summary:         m.Summary,
			Sentiment:       m.Sentiment,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*Record, error) {
	var m models.DocumentAnalysis
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load analysis %d: %w", id, err)
	}
	return toRecord(&m, s.log), nil
}

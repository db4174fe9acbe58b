// Package audit records domain events and serves the filtered audit trail.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docintake/models"
	"docintake/pkg/logger"

	"gorm.io/gorm"
)

// EventType is the stored event_type value.
type EventType string

const (
	DocumentUpload  EventType = "Carga de documento"
	AIAnalysis      EventType = "IA"
	UserInteraction EventType = "Interacción del usuario"

	// Login and token refresh are user interactions.
	Login        = UserInteraction
	TokenRefresh = UserInteraction
)

var ErrUnknownEventType = errors.New("unknown event type")

// TypeInfo describes one recognized event type for clients.
type TypeInfo struct {
	Value EventType `json:"value"`
	Label string    `json:"label"`
}

// Types lists the recognized event types.
func Types() []TypeInfo {
	return []TypeInfo{
		{Value: DocumentUpload, Label: "Carga de documento"},
		{Value: AIAnalysis, Label: "IA"},
		{Value: UserInteraction, Label: "Interacción del usuario"},
	}
}

// ParseEventType accepts stored values only.
func ParseEventType(raw string) (EventType, error) {
	for _, t := range Types() {
		if raw == string(t.Value) {
			return t.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEventType, raw)
}

// Event is one thing worth remembering.
type Event struct {
	Type        EventType
	Description string
	UserID      *string
	Metadata    map[string]any
}

// Recorder is what other services depend on.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

type Service struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func New(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

// Record persists ev. Failures are logged and swallowed; the caller's
// operation must not depend on the audit trail.
func (s *Service) Record(ctx context.Context, ev Event) {
	entry := models.AuditLog{
		EventType:   string(ev.Type),
		Description: ev.Description,
		UserID:      ev.UserID,
		EventDate:   s.now().UTC(),
		Metadata:    encodeMetadata(ev.Metadata, s.log),
	}
	// a cancelled request still leaves its trail
	ctx = context.WithoutCancel(ctx)
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Error("audit record failed", "event_type", ev.Type, "description", ev.Description, "error", err)
		return
	}
	s.log.Debug("audit event recorded", "event_type", ev.Type, "description", ev.Description)
}

func encodeMetadata(md map[string]any, log *logger.Logger) *string {
	if len(md) == 0 {
		return nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		log.Warn("audit metadata not serializable", "error", err)
		s := fmt.Sprintf("%v", md)
		return &s
	}
	s := string(b)
	return &s
}

// Filter narrows Query. Zero values mean "no filter".
type Filter struct {
	Type   EventType
	UserID string
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Entry struct {
	ID          uint      `json:"id"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	UserID      *string   `json:"user_id"`
	EventDate   time.Time `json:"event_date"`
	// Metadata is the decoded JSON when it parses, the raw text otherwise.
	Metadata any `json:"metadata"`
}

type Page struct {
	Total  int64   `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Logs   []Entry `json:"logs"`
}

// Query returns matching events newest first. Total counts every match before
// pagination.
func (s *Service) Query(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.Type != "" {
		q = q.Where("event_type = ?", string(f.Type))
	}
	if uid := strings.TrimSpace(f.UserID); uid != "" {
		q = q.Where("user_id = ?", uid)
	}
	if f.Start != nil {
		q = q.Where("event_date >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("event_date <= ?", f.End.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count audit logs: %w", err)
	}

	var rows []models.AuditLog
	if err := q.Order("event_date DESC").Order("id DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}

	page := &Page{Total: total, Limit: f.Limit, Offset: f.Offset, Logs: make([]Entry, 0, len(rows))}
	for _, r := range rows {
		page.Logs = append(page.Logs, Entry{
			ID:          r.ID,
			EventType:   r.EventType,
			Description: r.Description,
			UserID:      r.UserID,
			EventDate:   r.EventDate,
			Metadata:    decodeMetadata(r.Metadata),
		})
	}
	return page, nil
}

func decodeMetadata(raw *string) any {
	if raw == nil || *raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(*raw), &v); err != nil {
		return *raw
	}
	return v
}

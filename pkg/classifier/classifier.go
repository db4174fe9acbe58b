// Package classifier sorts uploaded documents into invoices and informational
// documents and extracts the fields of each kind.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docintake/pkg/config"
	"docintake/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured = errors.New("AI integration not configured")
	ErrMalformed     = errors.New("malformed classifier response")
	ErrUnsupported   = errors.New("unsupported document type")
)

// Classification values.
const (
	Invoice     = "FACTURA"
	Information = "INFORMACION"
)

type Input struct {
	FileName    string
	ContentType string
	Data        []byte
}

// MIMEType is the declared content type, sniffed from the bytes when absent
// or generic.
func (in Input) MIMEType() string {
	ct := strings.TrimSpace(strings.Split(in.ContentType, ";")[0])
	if ct == "" || ct == "application/octet-stream" {
		return http.DetectContentType(in.Data)
	}
	return ct
}

// Amount is a number that also accepts a numeric JSON string, as models
// sometimes quote figures.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
		if err != nil {
			return fmt.Errorf("amount %q: %w", s, err)
		}
		*a = Amount(d.InexactFloat64())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

type Product struct {
	Name      string  `json:"name"`
	Quantity  *Amount `json:"quantity"`
	UnitPrice *Amount `json:"unit_price"`
	LineTotal *Amount `json:"line_total"`
}

// Result is the raw classifier payload. Any field may be missing.
type Result struct {
	Classification  string    `json:"classification"`
	ClientName      *string   `json:"client_name"`
	ClientAddress   *string   `json:"client_address"`
	ProviderName    *string   `json:"provider_name"`
	ProviderAddress *string   `json:"provider_address"`
	InvoiceNumber   *string   `json:"invoice_number"`
	InvoiceDate     *string   `json:"invoice_date"`
	TotalAmount     *Amount   `json:"total_amount"`
	Products        []Product `json:"products"`
	Description     *string   `json:"description"`
	Summary         *string   `json:"summary"`
	Sentiment       *string   `json:"sentiment"`
}

// Classifier turns document bytes into a Result.
type Classifier interface {
	Classify(ctx context.Context, in Input) (*Result, error)
}

// Decode parses a JSON payload, tolerating a surrounding markdown fence.
func Decode(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}
	var r Result
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &r, nil
}

// Unconfigured fails every call; documents still get stored as ai_failed.
type Unconfigured struct{}

func (Unconfigured) Classify(context.Context, Input) (*Result, error) {
	return nil, ErrNotConfigured
}

// New picks the classifier named by cfg.Provider. The returned closer
// releases provider resources and is never nil.
func New(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (Classifier, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		g, err := NewGemini(ctx, cfg.ProjectID, cfg.Region, cfg.Model)
		if err != nil {
			return nil, nil, err
		}
		log.Info("document classifier initialized", "provider", "gemini", "model", cfg.Model, "region", cfg.Region)
		return g, g, nil
	case "ocr":
		log.Info("document classifier initialized", "provider", "ocr", "language", cfg.OCRLanguage)
		return NewOCR(nil, cfg.OCRLanguage), nopCloser{}, nil
	case "":
		log.Warn("no AI provider configured, documents will be stored as ai_failed")
		return Unconfigured{}, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

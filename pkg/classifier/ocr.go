package classifier

import (
	"context"
	"fmt"
	"strings"

	"docintake/pkg/ocr"
)

// TextReader extracts text from image bytes.
type TextReader interface {
	Text(ctx context.Context, data []byte) (string, error)
}

// OCR is an offline classifier: tesseract text plus keyword and amount
// heuristics. It only handles images.
type OCR struct {
	reader TextReader
}

// NewOCR uses reader, or a tesseract engine for language when reader is nil.
func NewOCR(reader TextReader, language string) *OCR {
	if reader == nil {
		reader = ocr.NewEngine(language)
	}
	return &OCR{reader: reader}
}

func (o *OCR) Classify(ctx context.Context, in Input) (*Result, error) {
	mime := in.MIMEType()
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: ocr reads images only, got %s", ErrUnsupported, mime)
	}
	text, err := o.reader.Text(ctx, in.Data)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	amount, _, amountErr := ocr.Amount(text)
	if ocr.LooksLikeInvoice(text) || amountErr == nil {
		r := &Result{Classification: Invoice, Products: []Product{}}
		if amountErr == nil {
			a := Amount(amount.InexactFloat64())
			r.TotalAmount = &a
		}
		if n, ok := ocr.InvoiceNumber(text); ok {
			r.InvoiceNumber = &n
		}
		return r, nil
	}

	words := len(strings.Fields(text))
	desc := fmt.Sprintf("Scanned document with %d words of text", words)
	summary := ocr.Snippet(text, 280)
	sentiment := "neutral"
	return &Result{
		Classification: Information,
		Description:    &desc,
		Summary:        &summary,
		Sentiment:      &sentiment,
	}, nil
}

package documents

import (
	"errors"
	"fmt"
	"strings"

	"docintake/pkg/classifier"
)

var ErrInvalidClassification = errors.New("classification must be FACTURA or INFORMACION")

type ProductLine struct {
	Name      string   `json:"name"`
	Quantity  *float64 `json:"quantity"`
	UnitPrice *float64 `json:"unit_price"`
	LineTotal *float64 `json:"line_total"`
}

// Analysis always carries every key of both classifications; keys that do not
// apply are null so clients never branch on classification to find them.
type Analysis struct {
	Classification  string        `json:"classification"`
	ClientName      *string       `json:"client_name"`
	ClientAddress   *string       `json:"client_address"`
	ProviderName    *string       `json:"provider_name"`
	ProviderAddress *string       `json:"provider_address"`
	InvoiceNumber   *string       `json:"invoice_number"`
	InvoiceDate     *string       `json:"invoice_date"`
	TotalAmount     *float64      `json:"total_amount"`
	Products        []ProductLine `json:"products"`
	Description     *string       `json:"description"`
	Summary         *string       `json:"summary"`
	Sentiment       *string       `json:"sentiment"`
}

// ParseClassification upper-cases and validates raw.
func ParseClassification(raw string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	switch c {
	case classifier.Invoice, classifier.Information:
		return c, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidClassification, raw)
}

// Normalize maps a raw classifier result onto the fixed Analysis shape. An
// unknown classification is a malformed result.
func Normalize(r *classifier.Result) (*Analysis, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no result", classifier.ErrMalformed)
	}
	class, err := ParseClassification(r.Classification)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", classifier.ErrMalformed, err)
	}
	a := &Analysis{Classification: class}
	if class == classifier.Invoice {
		a.ClientName = clean(r.ClientName)
		a.ClientAddress = clean(r.ClientAddress)
		a.ProviderName = clean(r.ProviderName)
		a.ProviderAddress = clean(r.ProviderAddress)
		a.InvoiceNumber = clean(r.InvoiceNumber)
		a.InvoiceDate = clean(r.InvoiceDate)
		a.TotalAmount = amount(r.TotalAmount)
		a.Products = make([]ProductLine, 0, len(r.Products))
		for _, p := range r.Products {
			a.Products = append(a.Products, ProductLine{
				Name:      strings.TrimSpace(p.Name),
				Quantity:  amount(p.Quantity),
				UnitPrice: amount(p.UnitPrice),
				LineTotal: amount(p.LineTotal),
			})
		}
		return a, nil
	}
	a.Description = clean(r.Description)
	a.Summary = clean(r.Summary)
	a.Sentiment = clean(r.Sentiment)
	return a, nil
}

// clean trims s and turns blanks into nil.
func clean(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func amount(a *classifier.Amount) *float64 {
	if a == nil {
		return nil
	}
	f := float64(*a)
	return &f
}

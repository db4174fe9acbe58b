package documents

import (
	"context"
	"errors"
	"fmt"

	"docintake/models"

	"gorm.io/gorm"
)

// Patch lists the fields a caller wants to change. Keys absent from the
// request body keep their stored value; a present null clears the column.
type Patch struct {
	Classification  Optional[string]        `json:"classification"`
	ClientName      Optional[string]        `json:"client_name"`
	ClientAddress   Optional[string]        `json:"client_address"`
	ProviderName    Optional[string]        `json:"provider_name"`
	ProviderAddress Optional[string]        `json:"provider_address"`
	InvoiceNumber   Optional[string]        `json:"invoice_number"`
	InvoiceDate     Optional[string]        `json:"invoice_date"`
	TotalAmount     Optional[float64]       `json:"total_amount"`
	Products        Optional[[]ProductLine] `json:"products"`
	Description     Optional[string]        `json:"description"`
	Summary         Optional[string]        `json:"summary"`
	Sentiment       Optional[string]        `json:"sentiment"`
}

// columns converts the patch into a gorm update map.
func (p Patch) columns() (map[string]any, error) {
	cols := map[string]any{}
	if p.Classification.Set {
		if p.Classification.Value == nil {
			return nil, fmt.Errorf("%w: got null", ErrInvalidClassification)
		}
		c, err := ParseClassification(*p.Classification.Value)
		if err != nil {
			return nil, err
		}
		cols["classification"] = c
	}
	str := func(col string, o Optional[string]) {
		if o.Set {
			cols[col] = o.Value
		}
	}
	str("client_name", p.ClientName)
	str("client_address", p.ClientAddress)
	str("provider_name", p.ProviderName)
	str("provider_address", p.ProviderAddress)
	str("invoice_number", p.InvoiceNumber)
	str("invoice_date", p.InvoiceDate)
	str("description", p.Description)
	str("summary", p.Summary)
	str("sentiment", p.Sentiment)
	if p.TotalAmount.Set {
		cols["total_amount"] = p.TotalAmount.Value
	}
	if p.Products.Set {
		var list []ProductLine
		if p.Products.Value != nil {
			list = *p.Products.Value
		}
		enc, err := encodeProducts(list)
		if err != nil {
			return nil, err
		}
		cols["products"] = enc
	}
	return cols, nil
}

// Update merges p into analysis id. A supplied product list replaces the
// stored one entirely.
func (s *Service) Update(ctx context.Context, id uint, p Patch) (*Record, error) {
	cols, err := p.columns()
	if err != nil {
		return nil, err
	}
	var m models.DocumentAnalysis
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&m, id).Error; err != nil {
			return err
		}
		if len(cols) == 0 {
			return nil
		}
		if err := tx.Model(&m).Updates(cols).Error; err != nil {
			return err
		}
		return tx.First(&m, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update analysis %d: %w", id, err)
	}
	s.log.Info("analysis updated", "analysis_id", id, "fields", len(cols))
	return toRecord(&m, s.log), nil
}

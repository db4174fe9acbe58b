package tabular

import (
	"sort"
	"strings"

	"docintake/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Validation is one row-level failure.
type Validation struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Row is a record that passed every check.
type Row struct {
	Row        int
	ExternalID *string
	Name       string
	Price      decimal.Decimal
}

// Validate runs the per-field pass and then duplicate detection over the rows
// that survived it. A row failing a field check is never also a duplicate.
func Validate(records []Record) ([]Row, []Validation) {
	var (
		errs   []Validation
		passed []Row
	)
	for _, rec := range records {
		name, nameOK := value(rec.Fields, "name")
		rawPrice, priceOK := value(rec.Fields, "price")

		failed := false
		if !nameOK {
			errs = append(errs, Validation{Row: rec.Row, Column: "name", Error: models.ErrorEmpty, Message: "name is required"})
			failed = true
		}
		var price decimal.Decimal
		if !priceOK {
			errs = append(errs, Validation{Row: rec.Row, Column: "price", Error: models.ErrorEmpty, Message: "price is required"})
			failed = true
		} else {
			p, err := decimal.NewFromString(rawPrice)
			if err != nil {
				errs = append(errs, Validation{Row: rec.Row, Column: "price", Error: models.ErrorType, Message: "price must be numeric"})
				failed = true
			}
			price = p
		}
		if failed {
			continue
		}
		row := Row{Row: rec.Row, Name: name, Price: price}
		if id, ok := value(rec.Fields, "id"); ok {
			row.ExternalID = &id
		}
		passed = append(passed, row)
	}

	seen := make(map[string]struct{}, len(passed))
	fold := cases.Fold()
	kept := passed[:0]
	for _, r := range passed {
		key := fold.String(r.Name)
		if _, dup := seen[key]; dup {
			errs = append(errs, Validation{Row: r.Row, Column: "name", Error: models.ErrorDuplicate, Message: "duplicate name"})
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Row < errs[j].Row })
	return kept, errs
}

// value returns the trimmed field and whether it counts as present. Missing,
// blank and NaN are all empty.
func value(fields map[string]string, key string) (string, bool) {
	v := strings.TrimSpace(fields[key])
	if v == "" || strings.EqualFold(v, "nan") {
		return "", false
	}
	return v, true
}

package ocr

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	totalRE    = regexp.MustCompile(`(?i)(?:\btotal(?:\s+a\s+pagar)?|importe\s+total|monto\s+total|amount\s+due|grand\s+total)\s*[:=]?\s*(?:[$€£]|usd|eur|cop|mxn)?\s*([0-9][0-9.,]*)`)
	currencyRE = regexp.MustCompile(`(?i)(?:[$€£]|usd|eur|cop|mxn)\s*([0-9][0-9.,]*)`)
	groupedRE  = regexp.MustCompile(`\b([0-9]{1,3}(?:[.,][0-9]{3})+(?:[.,][0-9]{2})?)\b`)
)

// candidate is one amount-looking substring found in the text.
type candidate struct {
	raw    string
	amount decimal.Decimal
	score  int
}

// Amount picks the most likely invoice total in text. Matches next to a
// total keyword win over bare currency amounts, which win over grouped
// numbers; ties go to the larger amount.
func Amount(text string) (decimal.Decimal, string, error) {
	var cands []candidate
	add := func(re *regexp.Regexp, base int) {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			amt, ok := ParseAmount(m[1])
			if !ok || !amt.IsPositive() {
				continue
			}
			cands = append(cands, candidate{raw: strings.TrimSpace(m[0]), amount: amt, score: base + scoreShape(m[1])})
		}
	}
	add(totalRE, 20)
	add(currencyRE, 10)
	add(groupedRE, 0)

	if len(cands) == 0 {
		return decimal.Zero, "", ErrNoAmount
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score || (c.score == best.score && c.amount.GreaterThan(best.amount)) {
			best = c
		}
	}
	return best.amount, best.raw, nil
}

// scoreShape rewards separators and explicit cents.
func scoreShape(raw string) int {
	s := 0
	if strings.ContainsAny(raw, ".,") {
		s += 3
	}
	if centsRE.MatchString(raw) {
		s += 2
	}
	if len(onlyDigits(raw)) >= 4 {
		s++
	}
	return s
}

var centsRE = regexp.MustCompile(`[.,]\d{2}$`)

// ParseAmount reads a number written with either "." or "," as the decimal
// mark. A trailing separator followed by exactly two digits is taken as cents,
// any other separator as a thousands group.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.Trim(strings.TrimSpace(raw), ".,")
	if s == "" {
		return decimal.Zero, false
	}
	intPart, frac := s, ""
	if centsRE.MatchString(s) {
		cut := strings.LastIndexAny(s, ".,")
		intPart, frac = s[:cut], s[cut+1:]
	}
	digits := onlyDigits(intPart)
	if digits == "" {
		return decimal.Zero, false
	}
	if frac != "" {
		digits += "." + frac
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

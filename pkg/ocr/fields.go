package ocr

import "regexp"

var invoiceNumberRE = regexp.MustCompile(`(?i)(?:factura(?:\s+electr[oó]nica)?(?:\s+de\s+venta)?|invoice)\s*(?:n[oº°]\.?|num(?:ero|ber)?\.?|#)?\s*[:#]?\s*([A-Z0-9-]*[0-9][A-Z0-9-]*)`)

var invoiceKeywordsRE = regexp.MustCompile(`(?i)\b(?:factura|invoice|subtotal|iva|nit|total\s+a\s+pagar|amount\s+due)\b`)

// InvoiceNumber returns the identifier following a "factura"/"invoice" label.
func InvoiceNumber(text string) (string, bool) {
	m := invoiceNumberRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// LooksLikeInvoice reports whether text carries invoice vocabulary.
func LooksLikeInvoice(text string) bool {
	return invoiceKeywordsRE.MatchString(text)
}

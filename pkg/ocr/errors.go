package ocr

import "errors"

var (
	// ErrNoAmount is returned when no plausible monetary amount can be extracted.
	ErrNoAmount = errors.New("no amount detected")
	// ErrNoText is returned when every OCR pass came back empty.
	ErrNoText = errors.New("no text recognized")
)

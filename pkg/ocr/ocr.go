// Package ocr reads text out of scanned documents with tesseract and pulls
// invoice hints (total amount, invoice number) from that text.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Engine runs tesseract over in-memory images.
type Engine struct {
	// Language is a tesseract language spec such as "spa+eng".
	Language string
}

func NewEngine(language string) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{Language: language}
}

// Text decodes data as an image and returns the recognized text with
// whitespace collapsed. Passes run from cheapest to most aggressive and stop at
// the first one that yields text.
func (e *Engine) Text(ctx context.Context, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	base := prepare(img)

	passes := []struct {
		img  image.Image
		mode gosseract.PageSegMode
	}{
		{base, gosseract.PSM_AUTO},
		{dilate(adaptiveThreshold(base, 15, 7), 1), gosseract.PSM_AUTO},
		{base, gosseract.PSM_SPARSE_TEXT},
	}
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := e.recognize(p.img, p.mode)
		if err != nil {
			return "", err
		}
		if text = normalizeText(text); text != "" {
			return text, nil
		}
	}
	return "", ErrNoText
}

func (e *Engine) recognize(img image.Image, mode gosseract.PageSegMode) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(strings.Split(e.Language, "+")...); err != nil {
		return "", fmt.Errorf("ocr language: %w", err)
	}
	_ = client.SetPageSegMode(mode)
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}

// normalizeText collapses whitespace and newlines.
func normalizeText(t string) string {
	return strings.Join(strings.Fields(t), " ")
}

// Snippet shortens s to at most max runes.
func Snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// Command classify_file runs the configured document classifier on one file
// and prints the normalized analysis without touching the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"docintake/pkg/classifier"
	"docintake/pkg/config"
	"docintake/pkg/documents"
	"docintake/pkg/logger"
	"docintake/pkg/ocr"
)

func main() {
	f := flag.String("file", "", "document to classify")
	provider := flag.String("provider", "", "override AI_PROVIDER (gemini, ocr)")
	text := flag.Bool("text", false, "print the raw OCR text as well (images only)")
	flag.Parse()
	if *f == "" {
		fmt.Fprintln(os.Stderr, "-file required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *provider != "" {
		cfg.AI.Provider = *provider
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	data, err := os.ReadFile(*f)
	if err != nil {
		log.Fatal("read file", "error", err)
	}
	ctx := context.Background()
	in := classifier.Input{
		FileName:    filepath.Base(*f),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(*f))),
		Data:        data,
	}

	if *text {
		raw, err := ocr.NewEngine(cfg.AI.OCRLanguage).Text(ctx, data)
		if err != nil {
			log.Warn("ocr failed", "error", err)
		} else {
			fmt.Printf("text=%q\n", ocr.Snippet(raw, 400))
		}
	}

	c, closer, err := classifier.New(ctx, cfg.AI, log)
	if err != nil {
		log.Fatal("classifier init failed", "error", err)
	}
	defer closer.Close()

	res, err := c.Classify(ctx, in)
	if err != nil {
		log.Fatal("classification failed", "error", err)
	}
	analysis, err := documents.Normalize(res)
	if err != nil {
		log.Fatal("normalize failed", "error", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(analysis)
}

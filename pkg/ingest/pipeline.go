// Package ingest feeds files dropped into a directory through the same
// tabular and document pipelines as the HTTP upload.
package ingest

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docintake/pkg/documents"
	"docintake/pkg/tabular"
)

type TabularProcessor interface {
	Process(ctx context.Context, up tabular.Upload) (*tabular.Result, error)
}

type DocumentAnalyzer interface {
	AnalyzeAndStore(ctx context.Context, up documents.Upload) (*documents.Outcome, error)
}

// Pipeline routes a file to the tabular processor or the document analyzer.
// Param1 and Param2 are the provenance values stored on tabular files.
type Pipeline struct {
	Tabular    TabularProcessor
	Documents  DocumentAnalyzer
	Param1     string
	Param2     string
	UploadedBy string
}

// Outcome summarizes one ingested file for logging.
type Outcome struct {
	Kind      string
	ID        uint
	RowsSaved int
	Errors    int
	AIStatus  string
}

// Ingest reads path and hands it to the matching pipeline.
func (p *Pipeline) Ingest(ctx context.Context, path string) (*Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: file is empty", filepath.Base(path))
	}
	name := filepath.Base(path)
	ct := contentType(name, data)

	if tabular.IsTabular(name, ct) {
		res, err := p.Tabular.Process(ctx, tabular.Upload{
			FileName:    name,
			ContentType: ct,
			Data:        data,
			Param1:      &p.Param1,
			Param2:      &p.Param2,
			UploadedBy:  p.UploadedBy,
		})
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: "tabular", ID: res.FileID, RowsSaved: res.RowsSaved, Errors: len(res.Validations)}, nil
	}

	out, err := p.Documents.AnalyzeAndStore(ctx, documents.Upload{
		FileName:    name,
		ContentType: ct,
		Data:        data,
		UploadedBy:  p.UploadedBy,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: "document", ID: out.DocumentID, AIStatus: out.AIStatus}, nil
}

// contentType prefers the extension and sniffs the bytes otherwise.
func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// Supported reports whether name is a file the watcher should pick up.
func Supported(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xlsx", ".xls", ".pdf", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".tif", ".tiff":
		return true
	}
	return false
}

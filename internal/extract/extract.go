// Package extract is the text-extraction boundary of the pipeline. The
// orchestrator consumes it as an opaque, potentially slow and crash-prone
// capability: a file path goes in, a structured result or a failure comes
// out. How text is read (PDF text layer vs. image recognition) is decided
// here by extension and delegated to external tools.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/config"
	"github.com/keystone-estates/ingest-cli/internal/model"
)

// Extractor extracts structured facts from a single document.
type Extractor interface {
	Extract(ctx context.Context, path string) (*model.ExtractionResult, error)
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Local runs extraction tools in-process of the calling worker. The
// orchestrator never uses Local directly; it goes through Worker so a tool
// crash cannot take down the run.
type Local struct {
	pdfToText string
	tesseract string
}

// NewLocal creates a Local extractor from config.
func NewLocal(cfg config.ExtractConfig) *Local {
	return &Local{
		pdfToText: cfg.PdfToTextPath,
		tesseract: cfg.TesseractPath,
	}
}

// Extract reads text from the file (PDF text layer or OCR depending on
// extension) and parses structured facts out of it. A tool failure degrades
// to parsing the bare filename so a result is still produced; only the
// parse itself cannot fail.
func (l *Local) Extract(ctx context.Context, path string) (*model.ExtractionResult, error) {
	fileName := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	var text string
	var err error
	switch {
	case ext == ".pdf":
		text, err = runPdfToText(ctx, l.pdfToText, path)
	case imageExts[ext]:
		text, err = runTesseract(ctx, l.tesseract, path)
	default:
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			text = string(data)
		} else {
			err = readErr
		}
	}
	if err != nil {
		zap.L().Debug("extract: tool failed, falling back to filename",
			zap.String("file", fileName), zap.Error(err))
		text = fileName
	}

	result := Parse(text)
	result.FileName = fileName
	return result, nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/taxonomy"
)

// ingestDocument advances one discovered file through the full state
// machine: checkpoint gate, archive, extract, classify, finalize. The
// commit lock is held for the whole sequence so checkpoint writes stay
// serialized even when discovery fans out.
func (i *Ingestor) ingestDocument(ctx context.Context, prop *model.Property, absPath, relPath, fileName, sourceKind string) error {
	i.commitMu.Lock()
	defer i.commitMu.Unlock()

	log := zap.L().With(zap.String("property", prop.Name), zap.String("file", fileName))

	// Stage 0: checkpoint gate. A ledger entry means a prior run finalized
	// this path; re-running discovery never reprocesses it. A read failure
	// falls through to processing, which is safe because every later stage
	// is a no-op against existing outputs.
	exists, err := i.store.CheckpointExists(ctx, absPath)
	if err != nil {
		log.Warn("ingest: checkpoint lookup failed", zap.Error(err))
	}
	if exists {
		log.Debug("ingest: skipping, already ingested")
		return nil
	}
	logState(log, model.DocStateDiscovered)

	now := time.Now()
	nowISO := now.UTC().Format(time.RFC3339)

	// Stage 1: raw archival, scoped by property and source kind. Skipped
	// when the raw copy already exists from a partial prior run.
	rawDir := filepath.Join(i.cfg.Paths.VaultRoot, prop.Name, "raw_data", sourceKind)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return eris.Wrapf(err, "ingest: mkdir raw dir for %s", prop.Name)
	}
	rawPath := filepath.Join(rawDir, fileName)
	if !fileExists(rawPath) {
		if err := copyFile(absPath, rawPath); err != nil {
			return eris.Wrapf(err, "ingest: archive %s", fileName)
		}
		i.event(ctx, prop.ID, model.EventStaged, "Raw Archived: "+fileName, nowISO)
	}
	logState(log, model.DocStateArchived)

	// Stage 2: extraction through the retry wrapper. Terminal failure is
	// recoverable at the document level: substitute a placeholder and
	// continue, never abort the document.
	result, err := i.extractor.Extract(ctx, absPath)
	if err != nil {
		log.Error("ingest: extraction failed terminally", zap.Error(err))
		logState(log, model.DocStateExtractFailed)
		i.event(ctx, prop.ID, model.EventError,
			fmt.Sprintf("Extraction Failed: %s (%s)", fileName, err.Error()), nowISO)
		result = &model.ExtractionResult{
			FileName: fileName,
			Category: model.CategoryUnknown,
			Date:     now.Format("2006-01-02"),
		}
	} else {
		logState(log, model.DocStateExtracted)
		i.event(ctx, prop.ID, model.EventExtracted, "Text Extracted: "+fileName, nowISO)
	}

	// Stage 3: classification. Manual override always wins; the extractor
	// category only rescues a fallback path result.
	override, err := i.store.LookupOverride(ctx, absPath)
	if err != nil {
		log.Warn("ingest: override lookup failed", zap.Error(err))
	}
	var bucket taxonomy.Bucket
	if override != "" {
		bucket = taxonomy.Bucket(override)
	} else {
		bucket = taxonomy.Classify(relPath, fileName)
		if bucket == taxonomy.BucketMisc && result.Category != model.CategoryUnknown {
			bucket = taxonomy.Normalize(result.Category)
		}
	}
	logState(log, model.DocStateClassified)
	i.event(ctx, prop.ID, model.EventClassified,
		fmt.Sprintf("Classified as %s: %s", bucket, fileName), nowISO)

	// Stage 4: finalization. Placement is no-clobber; checkpoint and events
	// proceed regardless so duplicate filenames from independent runs do
	// not wedge the ledger.
	targetDir := filepath.Join(i.cfg.Paths.VaultRoot, prop.Name, string(bucket))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return eris.Wrapf(err, "ingest: mkdir bucket %s", bucket)
	}
	targetPath := filepath.Join(targetDir, fileName)
	if override != "" {
		// The pin follows the committed copy so reconciliation honors it.
		if err := i.store.UpsertOverride(ctx, targetPath, override, "pinned from source override"); err != nil {
			log.Warn("ingest: override pin failed", zap.Error(err))
		}
	}
	copied := false
	if !fileExists(targetPath) {
		if err := copyFile(absPath, targetPath); err != nil {
			return eris.Wrapf(err, "ingest: finalize %s", fileName)
		}
		copied = true
	}

	sidecar := model.Sidecar{
		Path:        absPath,
		Category:    string(bucket),
		ProcessedAt: now.UTC(),
		OCRResult:   result,
		SystemTags:  []string{string(bucket), strings.TrimPrefix(filepath.Ext(fileName), ".")},
	}
	if err := writeSidecar(targetPath+".json", sidecar); err != nil {
		return err
	}

	if copied {
		i.stats.FilesCopied++
	}

	if err := AppendExtractionFact(i.cfg.Paths.VaultRoot, prop.Name, string(bucket), result); err != nil {
		log.Warn("ingest: profile update failed", zap.Error(err))
	}

	// Ledger write failures are logged but do not block progress; the
	// destination file and sidecar are already durable.
	if err := i.store.RecordCheckpoint(ctx, model.Checkpoint{
		FilePath:    absPath,
		PropertyID:  prop.ID,
		Category:    string(bucket),
		ProcessedAt: now,
	}); err != nil {
		log.Warn("ingest: checkpoint write failed", zap.Error(err))
	}

	// The audit trail reflects document-intrinsic time when extraction
	// found a date.
	eventDate := nowISO
	if result.Date != "" {
		eventDate = result.Date
	}
	desc := fmt.Sprintf("%s Finalized: %s", strings.ToUpper(string(bucket)), fileName)
	if result.Amount != "" {
		desc += fmt.Sprintf(" (Amount: %s)", result.Amount)
	}
	i.event(ctx, prop.ID, model.EventFinalized, desc, eventDate)

	log.Info("ingest: document finalized",
		zap.String("state", string(model.DocStateFinalized)),
		zap.String("bucket", string(bucket)),
		zap.Bool("copied", copied),
	)
	return nil
}

// logState traces a document's state-machine transition.
func logState(log *zap.Logger, state model.DocumentState) {
	log.Debug("ingest: state", zap.String("state", string(state)))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "copy: open %s", src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "copy: create %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return eris.Wrapf(err, "copy: write %s", dst)
	}
	return eris.Wrapf(out.Close(), "copy: close %s", dst)
}

func writeSidecar(path string, sidecar model.Sidecar) error {
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ingest: marshal sidecar")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "ingest: write sidecar %s", path)
	}
	return nil
}

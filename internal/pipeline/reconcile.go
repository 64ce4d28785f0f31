package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/taxonomy"
)

// Buckets re-checked with a second-opinion extraction: the ones that
// collect keyword near-misses.
var sensitiveBuckets = map[string]bool{
	string(taxonomy.BucketIncome):   true,
	string(taxonomy.BucketExpenses): true,
	string(taxonomy.BucketMisc):     true,
}

// Reconcile sweeps every finalized bucket directory and relocates files
// whose bucket no longer matches current rules. Manual overrides always
// win. Re-extraction for sensitive buckets is rate-limited because this
// pass has no checkpoint of its own and sweeps run repeatedly.
func (i *Ingestor) Reconcile(ctx context.Context) error {
	vault := i.cfg.Paths.VaultRoot
	entries, err := os.ReadDir(vault)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrap(err, "reconcile: read vault")
	}

	for _, propEntry := range entries {
		if !propEntry.IsDir() || strings.HasPrefix(propEntry.Name(), ".") {
			continue
		}
		if err := i.reconcileProperty(ctx, propEntry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (i *Ingestor) reconcileProperty(ctx context.Context, propName string) error {
	propPath := filepath.Join(i.cfg.Paths.VaultRoot, propName)
	subs, err := os.ReadDir(propPath)
	if err != nil {
		return eris.Wrapf(err, "reconcile: read property %s", propName)
	}

	for _, sub := range subs {
		if !sub.IsDir() || sub.Name() == "raw_data" || strings.HasPrefix(sub.Name(), ".") {
			continue
		}
		bucketPath := filepath.Join(propPath, sub.Name())
		files, err := os.ReadDir(bucketPath)
		if err != nil {
			return eris.Wrapf(err, "reconcile: read bucket %s", bucketPath)
		}

		for _, file := range files {
			if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
				continue
			}
			// Sidecars follow their document, they are not re-classified.
			if strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			if err := i.reconcileFile(ctx, propPath, sub.Name(), file.Name()); err != nil {
				if ctx.Err() != nil {
					return err
				}
				zap.L().Warn("reconcile: file failed",
					zap.String("property", propName),
					zap.String("file", file.Name()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

func (i *Ingestor) reconcileFile(ctx context.Context, propPath, bucketName, fileName string) error {
	filePath := filepath.Join(propPath, bucketName, fileName)

	override, err := i.store.LookupOverride(ctx, filePath)
	if err != nil {
		zap.L().Warn("reconcile: override lookup failed", zap.Error(err))
	}

	var correct taxonomy.Bucket
	if override != "" {
		correct = taxonomy.Bucket(override)
	} else {
		correct = taxonomy.Classify(bucketName+"/"+fileName, fileName)

		if sensitiveBuckets[bucketName] {
			if err := i.reconcileLimit.Wait(ctx); err != nil {
				return err
			}
			if res, exErr := i.extractor.Extract(ctx, filePath); exErr == nil &&
				res.Category != model.CategoryUnknown {
				correct = taxonomy.Normalize(res.Category)
			}
		}
	}

	if correct == taxonomy.BucketMisc || correct.Top() == bucketName {
		return nil
	}

	targetDir := filepath.Join(propPath, string(correct))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return eris.Wrapf(err, "reconcile: mkdir %s", targetDir)
	}
	targetPath := filepath.Join(targetDir, fileName)
	if fileExists(targetPath) {
		// Never silently overwrite an existing destination.
		return nil
	}

	zap.L().Info("reconcile: relocating misclassified file",
		zap.String("file", fileName),
		zap.String("from", bucketName),
		zap.String("to", string(correct)),
	)
	if err := os.Rename(filePath, targetPath); err != nil {
		return eris.Wrapf(err, "reconcile: move %s", fileName)
	}
	if sidecar := filePath + ".json"; fileExists(sidecar) {
		if err := os.Rename(sidecar, targetPath+".json"); err != nil {
			zap.L().Warn("reconcile: sidecar move failed", zap.Error(err))
		}
	}
	return nil
}

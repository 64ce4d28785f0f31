// Package pipeline implements the staged document ingestion pipeline:
// discovery (folder tree, drop folders, mailbox store, metadata export),
// archival, extraction, classification, finalization, and the
// post-hoc reconciliation pass. One document is fully advanced through its
// state machine before the next commit begins, which keeps checkpoint
// writes race-free.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/keystone-estates/ingest-cli/internal/config"
	"github.com/keystone-estates/ingest-cli/internal/extract"
	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/store"
)

// Source kinds scope the raw-retention area per origin.
const (
	sourceFolders = "folders"
	sourceEmails  = "emails"
	sourceDrops   = "drops"
)

// Ingestor orchestrates the full ingestion run for all properties.
type Ingestor struct {
	cfg       *config.Config
	store     store.Store
	extractor extract.Extractor
	notifier  Notifier

	// commitMu serializes the per-document commit sequence; scanning may
	// fan out, checkpoint writes may not.
	commitMu sync.Mutex
	stats    model.RunStats

	// reconcileLimit throttles second-opinion extraction during the
	// reconciliation pass, which has no checkpoint of its own.
	reconcileLimit *rate.Limiter
}

// New creates an Ingestor. The extractor is expected to already carry the
// retry budget (extract.Retrying around the worker boundary).
func New(cfg *config.Config, st store.Store, ex extract.Extractor, n Notifier) *Ingestor {
	if n == nil {
		n = NopNotifier{}
	}
	r := cfg.Extract.ReconcileRate
	if r <= 0 {
		r = 0.5
	}
	return &Ingestor{
		cfg:            cfg,
		store:          st,
		extractor:      ex,
		notifier:       n,
		reconcileLimit: rate.NewLimiter(rate.Limit(r), 1),
	}
}

// Run executes the whole ingestion: property folders, drop folders, the
// mail store, the tabular metadata sync, and the reconciliation pass.
// Individual document failures never abort the run.
func (i *Ingestor) Run(ctx context.Context) (*model.RunStats, error) {
	log := zap.L()
	log.Info("ingest: starting run", zap.String("source", i.cfg.Paths.SourceRoot))

	if _, err := os.Stat(i.cfg.Paths.SourceRoot); err != nil {
		return nil, eris.Wrapf(err, "ingest: source root %s", i.cfg.Paths.SourceRoot)
	}

	if err := i.syncPropertyFolders(ctx); err != nil {
		return nil, err
	}

	i.notifier.Notify(model.Progress{Type: model.ProgressPhaseStart, Phase: "drops"})
	if err := i.sweepDropDirs(ctx); err != nil {
		log.Warn("ingest: drop sweep failed", zap.Error(err))
	}

	i.notifier.Notify(model.Progress{Type: model.ProgressPhaseStart, Phase: "mailbox"})
	if err := i.scanMailStore(ctx); err != nil {
		log.Warn("ingest: mail scan failed", zap.Error(err))
	}

	i.notifier.Notify(model.Progress{Type: model.ProgressPhaseStart, Phase: "metadata"})
	if err := i.syncMetadata(ctx); err != nil {
		log.Warn("ingest: metadata sync failed", zap.Error(err))
	}

	i.notifier.Notify(model.Progress{Type: model.ProgressPhaseStart, Phase: "reconcile"})
	if err := i.Reconcile(ctx); err != nil {
		log.Warn("ingest: reconcile failed", zap.Error(err))
	}

	stats := i.snapshotStats()
	log.Info("ingest: run complete",
		zap.Int("properties", stats.PropertiesFound),
		zap.Int("files_copied", stats.FilesCopied),
		zap.Int("emails", stats.EmailsProcessed),
	)
	i.notifier.Notify(model.Progress{Type: model.ProgressComplete, Stats: &stats})
	return &stats, nil
}

// syncPropertyFolders discovers property directories under the source root
// and drives every file in each through the staged commit pipeline.
func (i *Ingestor) syncPropertyFolders(ctx context.Context) error {
	entries, err := os.ReadDir(i.cfg.Paths.SourceRoot)
	if err != nil {
		return eris.Wrap(err, "ingest: read source root")
	}

	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || i.folderExcluded(name) {
			zap.L().Debug("ingest: skipping folder", zap.String("folder", name))
			continue
		}
		folders = append(folders, name)
	}

	for idx, name := range folders {
		i.addStats(func(s *model.RunStats) { s.PropertiesFound++ })
		i.notifier.Notify(model.Progress{
			Type:     model.ProgressPropertyStart,
			Property: name,
			Index:    idx,
			Total:    len(folders),
		})

		prop, err := i.ensureProperty(ctx, name)
		if err != nil {
			return err
		}

		if err := WriteProfile(i.cfg.Paths.VaultRoot, prop); err != nil {
			zap.L().Warn("ingest: profile write failed",
				zap.String("property", name), zap.Error(err))
		}

		src := filepath.Join(i.cfg.Paths.SourceRoot, name)
		walkErr := walkTree(src, i.cfg.Paths.MaxWalkDepth, i.cfg.Paths.ExcludeGlobs,
			func(abs, rel, fileName string) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := i.ingestDocument(ctx, prop, abs, rel, fileName, sourceFolders); err != nil {
					// A single document's I/O failure aborts that document,
					// not the run.
					zap.L().Error("ingest: document failed",
						zap.String("property", name),
						zap.String("file", rel),
						zap.Error(err),
					)
					return nil
				}
				i.notifier.Notify(model.Progress{
					Type:     model.ProgressIngestion,
					Property: name,
					File:     rel,
				})
				return nil
			})
		if walkErr != nil {
			zap.L().Warn("ingest: walk failed",
				zap.String("property", name), zap.Error(walkErr))
		}

		stats := i.snapshotStats()
		i.notifier.Notify(model.Progress{
			Type:     model.ProgressPropertyComplete,
			Property: name,
			Stats:    &stats,
		})
	}
	return nil
}

// ensureProperty fetches or creates the property record for a discovered
// folder.
func (i *Ingestor) ensureProperty(ctx context.Context, name string) (*model.Property, error) {
	prop, err := i.store.GetPropertyByName(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: lookup property %s", name)
	}
	if prop != nil {
		return prop, nil
	}
	zap.L().Info("ingest: new property discovered", zap.String("property", name))
	prop, err = i.store.CreateProperty(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: create property %s", name)
	}
	return prop, nil
}

func (i *Ingestor) folderExcluded(name string) bool {
	for _, ex := range i.cfg.Paths.ExcludedFolders {
		if ex != "" && strings.Contains(name, ex) {
			return true
		}
	}
	return false
}

// event appends an audit record; append failures are logged, never fatal.
func (i *Ingestor) event(ctx context.Context, propertyID string, kind model.EventKind, description, eventDate string) {
	if err := i.store.AppendEvent(ctx, propertyID, kind, description, eventDate); err != nil {
		zap.L().Warn("ingest: event append failed",
			zap.String("property_id", propertyID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (i *Ingestor) addStats(fn func(*model.RunStats)) {
	i.commitMu.Lock()
	fn(&i.stats)
	i.commitMu.Unlock()
}

func (i *Ingestor) snapshotStats() model.RunStats {
	i.commitMu.Lock()
	defer i.commitMu.Unlock()
	return i.stats
}

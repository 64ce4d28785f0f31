package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sweepDropDirs scans the configured ad-hoc drop directories (Downloads,
// Desktop and the like) for files whose names match a known property.
// Directories are scanned concurrently; commits stay serialized behind the
// commit lock.
func (i *Ingestor) sweepDropDirs(ctx context.Context) error {
	if len(i.cfg.Paths.DropDirs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, dir := range i.cfg.Paths.DropDirs {
		g.Go(func() error {
			return i.sweepDropDir(gctx, dir)
		})
	}
	return g.Wait()
}

func (i *Ingestor) sweepDropDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "drops: read dir %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := i.IngestDrop(ctx, filepath.Join(dir, entry.Name())); err != nil {
			zap.L().Error("drops: file ingest failed",
				zap.String("file", entry.Name()), zap.Error(err))
		}
	}
	return nil
}

// IngestDrop routes a single ad-hoc file through the staged pipeline when
// its name matches a known property. Unmatched files are left alone. Also
// the entry point for the drop-zone watcher.
func (i *Ingestor) IngestDrop(ctx context.Context, path string) error {
	props, err := i.store.ListActiveProperties(ctx)
	if err != nil {
		return eris.Wrap(err, "drops: list properties")
	}

	name := filepath.Base(path)
	matched := FindPropertyMatch(name, props)
	if matched == nil {
		zap.L().Debug("drops: no property match", zap.String("file", name))
		return nil
	}
	return i.ingestDocument(ctx, matched, path, name, name, sourceDrops)
}

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

func placeVaultFile(t *testing.T, vault, prop, bucket, name string) string {
	t.Helper()
	path := filepath.Join(vault, prop, bucket, name)
	writeTestFile(t, path)
	return path
}

func TestReconcileRelocatesMisclassifiedFile(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Audit Flat"
	misplaced := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "acquisition", "hdfc_statement_q2.pdf")
	writeTestFile(t, misplaced+".json")

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.Reconcile(ctx))

	moved := filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "hdfc_statement_q2.pdf")
	assert.FileExists(t, moved)
	assert.FileExists(t, moved+".json", "sidecar follows the document")
	assert.NoFileExists(t, misplaced)
}

func TestReconcileLeavesCorrectPlacement(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Stable Flat"
	placed := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "finances", "hdfc_statement.pdf")

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.Reconcile(ctx))

	assert.FileExists(t, placed)
}

func TestReconcileHonorsOverride(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Pinned Flat"
	pinned := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "legal", "hdfc_note.pdf")
	require.NoError(t, st.UpsertOverride(ctx, pinned, "legal", "keep with the case file"))

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.Reconcile(ctx))

	// Rules would say finances; the pin keeps it in legal.
	assert.FileExists(t, pinned)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "hdfc_note.pdf"))
}

func TestReconcileSecondOpinionExtraction(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Opinion Flat"
	misfiled := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "misc", "scan_0042.pdf")

	ex := &stubExtractor{results: map[string]*model.ExtractionResult{
		"scan_0042.pdf": {Category: model.CategoryBankStatement},
	}}
	ing := New(cfg, st, ex, nil)
	require.NoError(t, ing.Reconcile(ctx))

	assert.Equal(t, 1, ex.calls)
	assert.FileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "scan_0042.pdf"))
	assert.NoFileExists(t, misfiled)
}

func TestReconcileUnknownSecondOpinionStaysPut(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Unknown Flat"
	placed := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "misc", "scribble.pdf")

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.Reconcile(ctx))

	assert.FileExists(t, placed)
}

func TestReconcileNeverOverwritesDestination(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Collision Flat"
	misplaced := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "acquisition", "hdfc_statement.pdf")

	occupied := filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "hdfc_statement.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(occupied), 0o755))
	require.NoError(t, os.WriteFile(occupied, []byte("keep me"), 0o644))

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.Reconcile(ctx))

	kept, err := os.ReadFile(occupied)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(kept))
	assert.FileExists(t, misplaced, "source stays when the destination slot is taken")
}

func TestReconcileSkipsRawDataAndSidecars(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Raw Flat"
	rawFile := filepath.Join(cfg.Paths.VaultRoot, prop, "raw_data", "folders", "hdfc_statement.pdf")
	writeTestFile(t, rawFile)
	orphanSidecar := placeVaultFile(t, cfg.Paths.VaultRoot, prop, "acquisition", "hdfc_note.pdf.json")

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.Reconcile(ctx))

	assert.FileExists(t, rawFile)
	assert.FileExists(t, orphanSidecar)
}

func TestReconcileMissingVault(t *testing.T) {
	cfg := newTestConfig(t)
	st := newTestStore(t)

	ing := New(cfg, st, &stubExtractor{}, nil)
	assert.NoError(t, ing.Reconcile(context.Background()))
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-estates/ingest-cli/internal/config"
	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/store"
)

// stubExtractor returns canned results keyed by base filename. Unknown
// files get an empty UNKNOWN result; names in failures return an error.
type stubExtractor struct {
	results  map[string]*model.ExtractionResult
	failures map[string]bool
	calls    int
}

func (s *stubExtractor) Extract(ctx context.Context, path string) (*model.ExtractionResult, error) {
	s.calls++
	name := filepath.Base(path)
	if s.failures[name] {
		return nil, errors.New("extractor crashed")
	}
	if r, ok := s.results[name]; ok {
		out := *r
		out.FileName = path
		return &out, nil
	}
	return &model.ExtractionResult{FileName: path, Category: model.CategoryUnknown, Date: "01/01/2024"}, nil
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Paths: config.PathsConfig{
			SourceRoot: filepath.Join(t.TempDir(), "source"),
			VaultRoot:  filepath.Join(t.TempDir(), "vault"),
		},
		Extract: config.ExtractConfig{ReconcileRate: 1000},
		Mailbox: config.MailboxConfig{MaxBlobMB: 100},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunFullIngestion(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "3A Sushila Kunj"
	statementSrc := filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "hdfc_statement_march.pdf")
	writeTestFile(t, statementSrc)

	ex := &stubExtractor{results: map[string]*model.ExtractionResult{
		"hdfc_statement_march.pdf": {
			Category: model.CategoryBankStatement,
			Amount:   "4500",
			Date:     "15/03/2024",
			RawText:  "HDFC Bank Statement",
		},
	}}

	notifier := NewChanNotifier(64)
	stats, err := New(cfg, st, ex, notifier).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PropertiesFound)
	assert.Equal(t, 1, stats.FilesCopied)
	assert.Equal(t, 0, stats.EmailsProcessed)

	// Raw archive and classified destination both exist.
	assert.FileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "raw_data", "folders", "hdfc_statement_march.pdf"))
	finalPath := filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "hdfc_statement_march.pdf")
	assert.FileExists(t, finalPath)
	assert.FileExists(t, finalPath+".json")

	// Checkpoint is keyed by the source path.
	exists, err := st.CheckpointExists(ctx, statementSrc)
	require.NoError(t, err)
	assert.True(t, exists)

	// The extracted fact reached the profile.
	profile, err := os.ReadFile(filepath.Join(cfg.Paths.VaultRoot, prop, "profile.md"))
	require.NoError(t, err)
	assert.Contains(t, string(profile), "Amount: 4500 | Date: 15/03/2024")

	// Full audit trail for the document.
	activity, err := st.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, prop, activity[0].Property.Name)
	assert.Equal(t, 1, activity[0].Checkpoints)
	assert.Equal(t, 4, activity[0].Events)

	// Progress stream bookends.
	var msgs []model.Progress
	for {
		select {
		case m := <-notifier.C():
			msgs = append(msgs, m)
			continue
		default:
		}
		break
	}
	require.NotEmpty(t, msgs)
	assert.Equal(t, model.ProgressPropertyStart, msgs[0].Type)
	assert.Equal(t, model.ProgressComplete, msgs[len(msgs)-1].Type)

	// A per-document heartbeat sits between the bookends.
	var heartbeat *model.Progress
	for idx := range msgs {
		if msgs[idx].Type == model.ProgressIngestion {
			heartbeat = &msgs[idx]
		}
	}
	require.NotNil(t, heartbeat)
	assert.Equal(t, prop, heartbeat.Property)
	assert.Contains(t, heartbeat.File, "hdfc_statement_march.pdf")
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Belysa"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "anz_statement.pdf"))

	ex := &stubExtractor{}
	first, err := New(cfg, st, ex, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.FilesCopied)
	callsAfterFirst := ex.calls

	second, err := New(cfg, st, ex, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesCopied, "checkpointed files are never reprocessed")
	assert.Equal(t, callsAfterFirst, ex.calls, "no re-extraction on the second run")
}

func TestRunExtractorCategoryRescuesFallback(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Scan Flat"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "scan001.pdf"))

	ex := &stubExtractor{results: map[string]*model.ExtractionResult{
		"scan001.pdf": {Category: model.CategoryElectricityBill, Amount: "900", Date: "02/02/2024"},
	}}
	_, err := New(cfg, st, ex, nil).Run(ctx)
	require.NoError(t, err)

	// Path rules say misc, but a definite extractor category re-routes.
	assert.FileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "expenses", "scan001.pdf"))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "misc", "scan001.pdf"))
}

func TestRunManualOverrideWins(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Override Flat"
	src := filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "hdfc_note.pdf")
	writeTestFile(t, src)
	require.NoError(t, st.UpsertOverride(ctx, src, "legal", "actually a settlement"))

	_, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "legal", "hdfc_note.pdf"))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "hdfc_note.pdf"))
}

func TestRunSurvivesExtractionFailure(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Crash Flat"
	src := filepath.Join(cfg.Paths.SourceRoot, prop, "bills", "water_bill.pdf")
	writeTestFile(t, src)

	ex := &stubExtractor{failures: map[string]bool{"water_bill.pdf": true}}
	stats, err := New(cfg, st, ex, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesCopied)

	// Path classification still places the document; the sidecar carries
	// the placeholder result.
	finalPath := filepath.Join(cfg.Paths.VaultRoot, prop, "expenses", "water_bill.pdf")
	assert.FileExists(t, finalPath)

	exists, err := st.CheckpointExists(ctx, src)
	require.NoError(t, err)
	assert.True(t, exists)

	activity, err := st.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, 4, activity[0].Events, "the error event replaces the extracted event")
}

func TestRunFinalizeNeverClobbers(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "Clobber Flat"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "statement.pdf"))

	// An unrelated file with the same name already occupies the slot.
	existing := filepath.Join(cfg.Paths.VaultRoot, prop, "finances", "statement.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	stats, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)

	kept, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(kept))
	assert.Equal(t, 0, stats.FilesCopied)

	// The document is still checkpointed so the ledger does not wedge.
	exists, err := st.CheckpointExists(ctx, filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "statement.pdf"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunSkipsExcludedFolders(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Paths.ExcludedFolders = []string{"search"}
	st := newTestStore(t)

	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, "search-index", "junk.pdf"))
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, "Real Flat", "deed.pdf"))

	stats, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PropertiesFound)

	props, err := st.ListActiveProperties(ctx)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Real Flat", props[0].Name)
}

func TestRunMissingSourceRoot(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Paths.SourceRoot = filepath.Join(t.TempDir(), "absent")
	st := newTestStore(t)

	_, err := New(cfg, st, &stubExtractor{}, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunIngestsMatchedMail(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Paths.MailRoot = filepath.Join(t.TempDir(), "mail")
	st := newTestStore(t)

	const prop = "3A Sushila Kunj"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "statement.pdf"))
	writeMailBlob(t, cfg.Paths.MailRoot, "Inbox",
		"From - Thu Mar 14 09:12:01 2024\nSubject: Statement ready for 3A Sushila Kunj\n\nYour statement is ready.\n")

	stats, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EmailsProcessed)

	entries, err := os.ReadDir(filepath.Join(cfg.Paths.VaultRoot, prop, "legal", "emails"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "mail_")
}

func TestRunMailIngestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Paths.MailRoot = filepath.Join(t.TempDir(), "mail")
	st := newTestStore(t)

	const prop = "3A Sushila Kunj"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "bank", "statement.pdf"))
	writeMailBlob(t, cfg.Paths.MailRoot, "Inbox",
		"From - Thu Mar 14 09:12:01 2024\nSubject: Statement ready for 3A Sushila Kunj\n\nYour statement is ready.\n")

	first, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EmailsProcessed)

	second, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EmailsProcessed, "an unchanged mail store yields nothing new")

	// The same message maps to the same archived name, so re-runs never
	// grow the vault.
	entries, err := os.ReadDir(filepath.Join(cfg.Paths.VaultRoot, prop, "legal", "emails"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunMailIngestionIsIdempotentWithoutDate(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Paths.MailRoot = filepath.Join(t.TempDir(), "mail")
	st := newTestStore(t)

	const prop = "Belysa"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "deed.pdf"))
	writeMailBlob(t, cfg.Paths.MailRoot, "Inbox",
		"From nobody\nSubject: Rent paid for Belysa\n\nTenant has paid the rent.\n")

	first, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EmailsProcessed)

	second, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EmailsProcessed, "the content-hash name keys the same checkpoint")

	entries, err := os.ReadDir(filepath.Join(cfg.Paths.VaultRoot, prop, "legal", "emails"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunSyncsMetadata(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Paths.MetadataExport = filepath.Join(t.TempDir(), "portfolio.md")
	st := newTestStore(t)

	const prop = "3A Sushila Kunj"
	writeTestFile(t, filepath.Join(cfg.Paths.SourceRoot, prop, "deed.pdf"))
	require.NoError(t, os.WriteFile(cfg.Paths.MetadataExport, []byte(metadataFixture), 0o644))

	_, err := New(cfg, st, &stubExtractor{}, nil).Run(ctx)
	require.NoError(t, err)

	got, err := st.GetPropertyByName(ctx, prop)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "MTX-99", got.MunicipalTaxID)
	assert.Equal(t, "Rent: 25000 | Loan: Loan closed", got.Notes)

	profile, err := os.ReadFile(filepath.Join(cfg.Paths.VaultRoot, prop, "profile.md"))
	require.NoError(t, err)
	assert.Contains(t, string(profile), "- **Municipal Tax ID**: MTX-99")
}

func TestIngestDrop(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	const prop = "3A Sushila Kunj"
	_, err := st.CreateProperty(ctx, prop)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Paths.VaultRoot, prop), 0o755))

	dropDir := t.TempDir()
	dropped := filepath.Join(dropDir, "sushila kunj possession letter.pdf")
	writeTestFile(t, dropped)

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.IngestDrop(ctx, dropped))

	assert.FileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "raw_data", "drops", "sushila kunj possession letter.pdf"))
	assert.FileExists(t, filepath.Join(cfg.Paths.VaultRoot, prop, "acquisition", "sushila kunj possession letter.pdf"))
}

func TestIngestDropUnmatchedIsIgnored(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	st := newTestStore(t)

	_, err := st.CreateProperty(ctx, "3A Sushila Kunj")
	require.NoError(t, err)

	dropped := filepath.Join(t.TempDir(), "random_download.pdf")
	writeTestFile(t, dropped)

	ing := New(cfg, st, &stubExtractor{}, nil)
	require.NoError(t, ing.IngestDrop(ctx, dropped))

	exists, err := st.CheckpointExists(ctx, dropped)
	require.NoError(t, err)
	assert.False(t, exists)
}

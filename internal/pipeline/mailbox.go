package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/model"
	"github.com/keystone-estates/ingest-cli/internal/taxonomy"
)

// MailIntent classifies a detected message by simple keyword presence.
type MailIntent string

const (
	MailStatementReminder MailIntent = "REMINDER_STATEMENT"
	MailRentConfirmation  MailIntent = "RENT_CONFIRMATION"
	MailLabeled           MailIntent = "LABELED_COMMUNICATION"
)

// MailMessage is one message detected in a mailbox blob.
type MailMessage struct {
	Intent  MailIntent
	Subject string
	Lender  string
	Date    time.Time
	Body    string
	Labels  []string
}

// Index and filter artifacts that live alongside mailbox blobs.
var mailSkipNames = map[string]bool{
	"msgFilterRules.dat": true,
	"filterlog.html":     true,
}

var (
	mailBoundaryRe = regexp.MustCompile(`(?m)^From `)
	subjectRe      = regexp.MustCompile(`(?m)^Subject: (.*)$`)
	mailDateRe     = regexp.MustCompile(`(?m)^Date: (.*)$`)
	labelsRe       = regexp.MustCompile(`(?m)^X-Mozilla-Keys: (.*)$`)

	// After the boundary split each raw message still starts with the
	// remainder of the mbox separator line, "- <ctime>".
	separatorDateRe = regexp.MustCompile(`\A- (.+)`)
)

const mailBodyPreview = 500

// ScanMailStore recursively walks a local mail-store directory, treats
// every non-index file as a candidate mailbox blob, splits blobs into
// messages on the mbox boundary, and invokes fn for each detected message.
// Blobs over maxBlobMB are skipped to bound memory.
func ScanMailStore(root string, maxBlobMB int, fn func(MailMessage)) error {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "mailbox: stat %s", root)
	}
	if maxBlobMB <= 0 {
		maxBlobMB = 100
	}

	return walkTree(root, 0, nil, func(abs, rel, name string) error {
		if strings.HasSuffix(name, ".msf") || mailSkipNames[name] {
			return nil
		}
		if err := scanMailBlob(abs, maxBlobMB, fn); err != nil {
			// One unreadable blob must not stop the scan.
			zap.L().Warn("mailbox: blob scan failed", zap.String("file", rel), zap.Error(err))
		}
		return nil
	})
}

func scanMailBlob(path string, maxBlobMB int, fn func(MailMessage)) error {
	info, err := os.Stat(path)
	if err != nil {
		return eris.Wrapf(err, "mailbox: stat %s", path)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(maxBlobMB) {
		zap.L().Warn("mailbox: skipping oversized blob",
			zap.String("file", filepath.Base(path)),
			zap.Float64("size_mb", sizeMB),
		)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "mailbox: read %s", path)
	}

	for _, raw := range mailBoundaryRe.Split(string(data), -1) {
		if msg, ok := detectMessage(raw); ok {
			fn(msg)
		}
	}
	return nil
}

// detectMessage classifies one raw message. Statement-ready reminders and
// rent-paid confirmations are detected by keyword presence on the
// lowercased body; anything else with folder labels falls into the generic
// labeled bucket.
func detectMessage(raw string) (MailMessage, bool) {
	lower := strings.ToLower(raw)

	msg := MailMessage{
		Subject: extractSubject(raw),
		Date:    extractDate(raw),
		Body:    preview(raw),
		Labels:  extractLabels(raw),
	}

	switch {
	case strings.Contains(lower, "statement") &&
		(strings.Contains(lower, "ready") || strings.Contains(lower, "available")):
		msg.Intent = MailStatementReminder
		msg.Lender = detectLender(lower)
		return msg, true
	case strings.Contains(lower, "rent") && strings.Contains(lower, "paid"):
		msg.Intent = MailRentConfirmation
		return msg, true
	case len(msg.Labels) > 0:
		msg.Intent = MailLabeled
		return msg, true
	}
	return MailMessage{}, false
}

func extractSubject(raw string) string {
	if m := subjectRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "No Subject"
}

// extractDate parses the Date header, falling back to the mbox separator
// timestamp. Zero means no parseable date anywhere in the message.
func extractDate(raw string) time.Time {
	if m := mailDateRe.FindStringSubmatch(raw); m != nil {
		if t, err := mail.ParseDate(strings.TrimSpace(m[1])); err == nil {
			return t
		}
	}
	if m := separatorDateRe.FindStringSubmatch(raw); m != nil {
		if t, err := time.Parse(time.ANSIC, strings.TrimSpace(m[1])); err == nil {
			return t
		}
	}
	return time.Time{}
}

func extractLabels(raw string) []string {
	m := labelsRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return strings.Fields(m[1])
}

func detectLender(lower string) string {
	switch {
	case strings.Contains(lower, "hdfc"):
		return "HDFC"
	case strings.Contains(lower, "anz"):
		return "ANZ"
	case strings.Contains(lower, "commonwealth"):
		return "CBA"
	}
	return ""
}

func preview(raw string) string {
	if len(raw) <= mailBodyPreview {
		return raw
	}
	cut := mailBodyPreview
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut]
}

// mailFileName derives the archived name from the message date. With no
// parseable date the name falls back to a content hash, so the same
// message always maps to the same checkpoint key.
func mailFileName(msg MailMessage) string {
	if !msg.Date.IsZero() {
		return fmt.Sprintf("mail_%d.md", msg.Date.UnixMilli())
	}
	h := fnv.New64a()
	h.Write([]byte(msg.Subject))
	h.Write([]byte(msg.Body))
	return fmt.Sprintf("mail_%x.md", h.Sum64())
}

// scanMailStore is the pipeline entry point: detected messages are matched
// to properties by fuzzy name containment and routed through the
// archival/classification stages as synthesized documents.
func (i *Ingestor) scanMailStore(ctx context.Context) error {
	root := i.cfg.Paths.MailRoot
	if root == "" {
		return nil
	}

	props, err := i.store.ListActiveProperties(ctx)
	if err != nil {
		return eris.Wrap(err, "mailbox: list properties")
	}

	return ScanMailStore(root, i.cfg.Mailbox.MaxBlobMB, func(msg MailMessage) {
		matched := FindPropertyMatch(msg.Subject+" "+msg.Body, props)
		if matched == nil {
			return
		}
		if err := i.ingestMail(ctx, matched, msg); err != nil {
			zap.L().Error("mailbox: mail ingest failed",
				zap.String("property", matched.Name),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
		}
	})
}

// mailBucket is where classified mail lands in the vault.
var mailBucket = filepath.Join(string(taxonomy.BucketLegal), "emails")

// ingestMail archives one matched message as markdown and finalizes it
// under legal/emails. The document identity is the archived path, whose
// filename derives from the message date, so re-scanning an unchanged
// mail store hits the checkpoint and does nothing.
func (i *Ingestor) ingestMail(ctx context.Context, prop *model.Property, msg MailMessage) error {
	i.commitMu.Lock()
	defer i.commitMu.Unlock()

	fileName := mailFileName(msg)
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	dateISO := date.UTC().Format(time.RFC3339)

	rawDir := filepath.Join(i.cfg.Paths.VaultRoot, prop.Name, "raw_data", sourceEmails)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return eris.Wrapf(err, "mailbox: mkdir raw dir for %s", prop.Name)
	}
	rawPath := filepath.Join(rawDir, fileName)

	exists, err := i.store.CheckpointExists(ctx, rawPath)
	if err != nil {
		zap.L().Warn("mailbox: checkpoint lookup failed", zap.Error(err))
	}
	if exists {
		return nil
	}

	if err := os.WriteFile(rawPath, []byte(mailToMarkdown(msg, dateISO)), 0o644); err != nil {
		return eris.Wrapf(err, "mailbox: archive %s", fileName)
	}
	i.event(ctx, prop.ID, model.EventStaged, "Email Archived: "+msg.Subject, dateISO)

	// Mail is already text; extraction and classification collapse into a
	// fixed bucket.
	targetDir := filepath.Join(i.cfg.Paths.VaultRoot, prop.Name, mailBucket)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return eris.Wrapf(err, "mailbox: mkdir bucket for %s", prop.Name)
	}
	targetPath := filepath.Join(targetDir, fileName)
	if !fileExists(targetPath) {
		if err := copyFile(rawPath, targetPath); err != nil {
			return eris.Wrapf(err, "mailbox: finalize %s", fileName)
		}
	}
	i.event(ctx, prop.ID, model.EventClassified, "Email Classified: "+mailBucket, dateISO)

	if err := i.store.RecordCheckpoint(ctx, model.Checkpoint{
		FilePath:    rawPath,
		PropertyID:  prop.ID,
		Category:    mailBucket,
		ProcessedAt: date,
	}); err != nil {
		zap.L().Warn("mailbox: checkpoint write failed", zap.Error(err))
	}

	i.stats.EmailsProcessed++
	i.event(ctx, prop.ID, model.EventFinalized, "Email Sync Complete: "+msg.Subject, dateISO)
	return nil
}

func mailToMarkdown(msg MailMessage, dateISO string) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "subject: %q\n", msg.Subject)
	fmt.Fprintf(&b, "date: %s\n", dateISO)
	fmt.Fprintf(&b, "intent: %s\n", msg.Intent)
	if msg.Lender != "" {
		fmt.Fprintf(&b, "lender: %s\n", msg.Lender)
	}
	if len(msg.Labels) > 0 {
		fmt.Fprintf(&b, "labels: %s\n", strings.Join(msg.Labels, " "))
	}
	b.WriteString("type: email\n")
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", msg.Subject)
	body := msg.Body
	if body == "" {
		body = "No content"
	}
	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

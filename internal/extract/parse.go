package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

const maxRawText = 500

var (
	amountRe = regexp.MustCompile(`(?i)(?:total|amount|bill|balance)\s*:?\s*[₹$]?\s*(\d+(?:,\d+)*(?:\.\d{2})?)`)
	dateRe   = regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`)
)

// categoryKeywords maps document-text tokens to extractor categories,
// checked in order.
var categoryKeywords = []struct {
	category string
	tokens   []string
}{
	{model.CategoryElectricityBill, []string{"bescom", "electricity", "jharkhand bijli"}},
	{model.CategoryGasBill, []string{"mahanagar gas", "gas bill"}},
	{model.CategoryBankStatement, []string{"bank statement", "account summary", "funds/securities balance"}},
	{model.CategoryRentalAgreement, []string{"rental agreement", "lease agreement"}},
}

// Parse derives structured facts from extracted document text. It is total:
// when nothing matches, the category is UNKNOWN, the amount empty, and the
// date today's date.
func Parse(text string) *model.ExtractionResult {
	result := &model.ExtractionResult{
		Category: Categorize(text),
		Date:     time.Now().Format("2006-01-02"),
	}

	if m := amountRe.FindStringSubmatch(text); m != nil {
		result.Amount = strings.ReplaceAll(m[1], ",", "")
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		result.Date = m[1]
	}

	result.RawText = text
	if len(result.RawText) > maxRawText {
		cut := maxRawText
		for cut > 0 && !utf8.RuneStart(result.RawText[cut]) {
			cut--
		}
		result.RawText = result.RawText[:cut]
	}
	return result
}

// Categorize maps document text to a category hint by keyword presence.
func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, tok := range ck.tokens {
			if strings.Contains(lower, tok) {
				return ck.category
			}
		}
	}
	return model.CategoryUnknown
}

// Package taxonomy classifies source documents into the fixed bucket
// taxonomy from their path context. Classification is a total, deterministic
// function: the fallback bucket is always returned, never an error.
package taxonomy

import (
	"strings"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// Bucket is one taxonomy destination. BucketIdentity is a nested path under
// legal; everything else is a top-level vault directory.
type Bucket string

const (
	BucketFinances    Bucket = "finances"
	BucketIncome      Bucket = "income"
	BucketExpenses    Bucket = "expenses"
	BucketLegal       Bucket = "legal"
	BucketAcquisition Bucket = "acquisition"
	BucketMedia       Bucket = "media"
	BucketIdentity    Bucket = "legal/identity"
	BucketMisc        Bucket = "misc"
)

// Rule is one ordered classification rule. A rule matches when any keyword
// is a substring of the lowercased relative path, or when the filename
// carries one of the listed extensions. When Reroute keywords also match,
// RerouteTo wins over Bucket (rental agreements are legal, not income).
type Rule struct {
	Bucket     Bucket
	Keywords   []string
	Extensions []string
	Reroute    []string
	RerouteTo  Bucket
}

// rules is evaluated in order; the first matching rule wins.
var rules = []Rule{
	{
		Bucket: BucketFinances,
		Keywords: []string{
			"bank", "statement", "hdfc", "icici", "anz", "lic",
			"loan", "mortgage", "interest", "repayment", "daf", "valuation",
		},
	},
	{
		Bucket:    BucketIncome,
		Keywords:  []string{"rental", "rent", "tenant", "deposit", "income"},
		Reroute:   []string{"agreement", "lease"},
		RerouteTo: BucketLegal,
	},
	{
		Bucket: BucketExpenses,
		Keywords: []string{
			"electricity", "bescom", "gas", "water", "bill", "receipt",
			"tax", "invoice", "repair", "maintenance", "insurance",
			"strata", "rate", "council",
		},
	},
	{
		Bucket: BucketLegal,
		Keywords: []string{
			"court", "drt", "legal", "settlement", "agreement", "lease",
			"contract", "powerofattorney", "poa", "affidavit", "auction",
			"bid", "sale certificate", "deed",
		},
	},
	{
		Bucket: BucketAcquisition,
		Keywords: []string{
			"possession", "registration", "occupancy", "oc",
			"visit", "allotment", "cluster",
		},
	},
	{
		Bucket:     BucketMedia,
		Keywords:   []string{"photo", "pics", "image"},
		Extensions: []string{".jpg", ".jpeg", ".png", ".gif"},
	},
	{
		Bucket:   BucketIdentity,
		Keywords: []string{"aadhar", "adhar", "pan card", "passport"},
	},
}

// Classify maps a file's relative path context and name to a bucket. The
// relative path is expected to already include the filename; the filename
// is passed separately for extension matching.
func Classify(relPath, fileName string) Bucket {
	search := strings.ToLower(relPath)
	name := strings.ToLower(fileName)

	for _, r := range rules {
		if !r.matches(search, name) {
			continue
		}
		if r.RerouteTo != "" && containsAny(search, r.Reroute) {
			return r.RerouteTo
		}
		return r.Bucket
	}
	return BucketMisc
}

func (r Rule) matches(search, name string) bool {
	if containsAny(search, r.Keywords) {
		return true
	}
	for _, ext := range r.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// extractorCategories maps definite extractor categories to buckets. Used
// only when path-based classification landed on the fallback bucket.
var extractorCategories = map[string]Bucket{
	model.CategoryElectricityBill: BucketExpenses,
	model.CategoryGasBill:         BucketExpenses,
	model.CategoryBankStatement:   BucketFinances,
	model.CategoryRentalAgreement: BucketLegal,
}

// Normalize maps an extractor category hint to a bucket, falling back to
// BucketMisc for unknown hints.
func Normalize(category string) Bucket {
	if b, ok := extractorCategories[category]; ok {
		return b
	}
	return BucketMisc
}

// Buckets lists every bucket a document may be committed to, in rule order.
func Buckets() []Bucket {
	return []Bucket{
		BucketFinances, BucketIncome, BucketExpenses, BucketLegal,
		BucketAcquisition, BucketMedia, BucketIdentity, BucketMisc,
	}
}

// Valid reports whether name is a known bucket.
func Valid(name string) bool {
	for _, b := range Buckets() {
		if string(b) == name {
			return true
		}
	}
	return false
}

// Top returns the top-level vault directory for the bucket (identity files
// live under legal/).
func (b Bucket) Top() string {
	if idx := strings.IndexByte(string(b), '/'); idx > 0 {
		return string(b)[:idx]
	}
	return string(b)
}

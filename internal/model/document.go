package model

import "time"

// DocumentState tracks a source document through the staged commit pipeline.
type DocumentState string

const (
	DocStateDiscovered    DocumentState = "discovered"
	DocStateArchived      DocumentState = "archived"
	DocStateExtracted     DocumentState = "extracted"
	DocStateExtractFailed DocumentState = "extract_failed"
	DocStateClassified    DocumentState = "classified"
	DocStateFinalized     DocumentState = "finalized"
)

// Extractor category hints. CategoryUnknown is the placeholder used when
// extraction fails terminally or yields nothing definite.
const (
	CategoryUnknown         = "UNKNOWN"
	CategoryElectricityBill = "ELECTRICITY_BILL"
	CategoryGasBill         = "GAS_BILL"
	CategoryBankStatement   = "BANK_STATEMENT"
	CategoryRentalAgreement = "RENTAL_AGREEMENT"
)

// ExtractionResult is the structured output of the extractor worker.
// Amount is a decimal string with grouping separators stripped, empty when
// no amount was found. Date is an ISO date string. RawText is capped at
// 500 characters.
type ExtractionResult struct {
	FileName string `json:"file_name,omitempty"`
	Category string `json:"category"`
	Amount   string `json:"amount,omitempty"`
	Date     string `json:"date"`
	RawText  string `json:"raw_text,omitempty"`
}

// Sidecar is the JSON metadata document written next to every finalized
// file.
type Sidecar struct {
	Path        string            `json:"path"`
	Category    string            `json:"category"`
	ProcessedAt time.Time         `json:"processed_at"`
	OCRResult   *ExtractionResult `json:"ocr_result"`
	SystemTags  []string          `json:"system_tags"`
}

// Checkpoint is one ledger entry: the existence of a row for a source path
// is the single source of truth for "do not reprocess". At most one entry
// exists per path.
type Checkpoint struct {
	ID          string    `json:"id"`
	FilePath    string    `json:"file_path"`
	PropertyID  string    `json:"property_id"`
	Category    string    `json:"category"`
	ProcessedAt time.Time `json:"processed_at"`
}

package model

// ProgressType identifies a one-way progress message from the ingestion
// process to the host.
type ProgressType string

const (
	ProgressPropertyStart    ProgressType = "PROPERTY_START"
	ProgressPropertyComplete ProgressType = "PROPERTY_COMPLETE"
	ProgressPhaseStart       ProgressType = "PHASE_START"
	ProgressIngestion        ProgressType = "INGESTION_PROGRESS"
	ProgressComplete         ProgressType = "INGESTION_COMPLETE"
	ProgressError            ProgressType = "INGESTION_ERROR"
)

// RunStats summarizes one ingestion run.
type RunStats struct {
	PropertiesFound int `json:"properties_found"`
	FilesCopied     int `json:"files_copied"`
	EmailsProcessed int `json:"emails_processed"`
}

// Progress is a fire-and-forget notification. Delivery is best-effort: the
// host must never block awaiting one, and the pipeline drops messages a
// slow consumer cannot take.
type Progress struct {
	Type     ProgressType `json:"type"`
	Property string       `json:"property,omitempty"`
	Phase    string       `json:"phase,omitempty"`
	File     string       `json:"file,omitempty"`
	Index    int          `json:"index,omitempty"`
	Total    int          `json:"total,omitempty"`
	Stats    *RunStats    `json:"stats,omitempty"`
	Error    string       `json:"error,omitempty"`
}

package model

import "time"

// RunStatus represents the current state of an overview generation run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusScraping     RunStatus = "scraping"
	RunStatusEnriching    RunStatus = "enriching"
	RunStatusAnalyzing    RunStatus = "analyzing"
	RunStatusGeolocating  RunStatus = "geolocating"
	RunStatusMapping      RunStatus = "mapping"
	RunStatusWritingCRM   RunStatus = "writing_crm"
	RunStatusComplete     RunStatus = "complete"
	RunStatusInsufficient RunStatus = "insufficient"
	RunStatusFailed       RunStatus = "failed"
)

// Company is the immutable input to the generation pipeline, built from a
// CRM record or a webhook payload.
type Company struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Description string `json:"description,omitempty"`
}

// Run represents a single generation run for a company.
type Run struct {
	ID        string     `json:"id"`
	Company   Company    `json:"company"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	InsufficientData bool          `json:"insufficient_data"`
	Reason           string        `json:"reason,omitempty"`
	Suggestions      []string      `json:"suggestions,omitempty"`
	Fields           FieldMapping  `json:"fields,omitempty"`
	CRMUpdated       bool          `json:"crm_updated"`
	Phases           []PhaseResult `json:"phases,omitempty"`
	GeneratedAt      time.Time     `json:"generated_at"`
	Error            string        `json:"error,omitempty"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScrapeResult holds the content fetched from a company website. Scrape
// failures are absorbed: Available is false and Content is empty, and the
// pipeline proceeds with whatever else it has.
type ScrapeResult struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Available bool      `json:"available"`
	Source    string    `json:"source,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// OverviewResult is the terminal artifact of the orchestrator: either a full
// assembled overview or an insufficient-data verdict with remediation advice.
type OverviewResult struct {
	RunID            string          `json:"run_id"`
	Company          Company         `json:"company"`
	InsufficientData bool            `json:"insufficient_data"`
	Reason           string          `json:"reason,omitempty"`
	Suggestions      []string        `json:"suggestions,omitempty"`
	Message          string          `json:"message,omitempty"`
	Analysis         *AnalysisRecord `json:"analysis,omitempty"`
	Geolocation      *Geolocation    `json:"geolocation,omitempty"`
	Enrichment       map[string]any  `json:"enrichment,omitempty"`
	Scrape           *ScrapeResult   `json:"scrape,omitempty"`
	Fields           FieldMapping    `json:"fields,omitempty"`
	CRMUpdated       bool            `json:"crm_updated"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

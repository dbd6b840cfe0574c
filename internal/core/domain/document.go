package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "UPLOADED"
	StatusParsing    DocumentStatus = "PARSING"
	StatusExtracting DocumentStatus = "EXTRACTING"
	StatusMatching   DocumentStatus = "MATCHING"
	StatusReady      DocumentStatus = "READY"
	StatusError      DocumentStatus = "ERROR"
)

// statusRank orders the forward pipeline. ERROR sits outside the ranking and
// is handled explicitly by the lifecycle rules.
var statusRank = map[DocumentStatus]int{
	StatusUploaded:   0,
	StatusParsing:    1,
	StatusExtracting: 2,
	StatusMatching:   3,
	StatusReady:      4,
}

func (s DocumentStatus) Valid() bool {
	if s == StatusError {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Rank returns the forward-pipeline position of s and whether s participates
// in the ordering at all (ERROR does not).
func (s DocumentStatus) Rank() (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// Terminal reports whether no further progress callbacks are expected for the
// current attempt.
func (s DocumentStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

type Document struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	TenderName    string         `json:"tender_name,omitempty"`
	FileName      string         `json:"file_name"`
	FileType      string         `json:"file_type,omitempty"`
	FileSizeBytes int64          `json:"file_size_bytes,omitempty"`
	PageCount     int            `json:"page_count,omitempty"`
	StoragePath   string         `json:"storage_path"`
	Status        DocumentStatus `json:"status"`
	Progress      int            `json:"processing_progress"`
	Attempt       int            `json:"attempt"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// LifecycleState is the mutable lifecycle slice of a document, used as the
// guard and payload of compare-and-set updates.
type LifecycleState struct {
	Status       DocumentStatus
	Progress     int
	Attempt      int
	ErrorMessage string
}

// Lifecycle extracts the current lifecycle state of d.
func (d *Document) Lifecycle() LifecycleState {
	return LifecycleState{
		Status:       d.Status,
		Progress:     d.Progress,
		Attempt:      d.Attempt,
		ErrorMessage: d.ErrorMessage,
	}
}

// ProgressUpdate is one status/progress callback from the processing pipeline,
// scoped to the attempt it was produced for.
type ProgressUpdate struct {
	Status       DocumentStatus
	Progress     int
	Attempt      int
	ErrorMessage string
}

// StepLabel is the human-readable description of what the pipeline is doing
// while a document sits in the given status.
func StepLabel(s DocumentStatus) string {
	switch s {
	case StatusUploaded:
		return "Queued for processing"
	case StatusParsing:
		return "Extracting text from document"
	case StatusExtracting:
		return "Identifying requirements"
	case StatusMatching:
		return "Analyzing against company data"
	case StatusReady:
		return "Analysis complete"
	case StatusError:
		return "Processing failed"
	default:
		return "Processing"
	}
}

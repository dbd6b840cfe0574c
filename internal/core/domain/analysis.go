package domain

// ParsedDocument is the analyzer's parse result.
type ParsedDocument struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

// ProcessTask asks the worker to run the analysis pipeline for one document
// attempt. Attempt lets the pipeline's own progress reports be dropped once a
// retry has started a newer attempt.
type ProcessTask struct {
	DocumentID string `json:"document_id"`
	Attempt    int    `json:"attempt"`
}

// GenerateTask asks the worker to draft responses for a set of requirements.
type GenerateTask struct {
	DocumentID     string         `json:"document_id"`
	RequirementIDs []string       `json:"requirement_ids"`
	RequestedBy    string         `json:"requested_by"`
	Options        ComposeOptions `json:"options"`
}

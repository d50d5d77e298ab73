package models

import (
	"time"

	"github.com/google/uuid"
)

// Task kinds.
const (
	TaskKindHelp    = "assignment-help"
	TaskKindSummary = "summarization"
)

// Output formats the student can ask for.
const (
	FormatQnA         = "qna"
	FormatSummary     = "summary"
	FormatExplanation = "explanation"
)

// Task is one AI request: the submitted form plus, once the worker has run,
// the raw model output. ResultText is stored verbatim; how it renders (Q&A
// list vs plain text) is re-derived from the string on every read.
type Task struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Kind         string     `json:"kind"`
	Subject      string     `json:"subject"`
	OutputFormat string     `json:"output_format"`
	Query        *string    `json:"query"`
	FileDataURI  *string    `json:"-"`
	FileName     *string    `json:"file_name"`
	SourceURL    *string    `json:"source_url"`
	ResultText   *string    `json:"result_text"`
	Status       string     `json:"status"` // "pending" | "processing" | "completed" | "failed"
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type CreateTaskRequest struct {
	Kind         string  `json:"kind"`
	Subject      string  `json:"subject"`
	OutputFormat string  `json:"output_format"`
	Query        *string `json:"query"`
	FileDataURI  *string `json:"file_data_uri"`
	FileName     *string `json:"file_name"`
	SourceURL    *string `json:"source_url"`
}

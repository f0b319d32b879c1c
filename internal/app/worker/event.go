package worker

import "github.com/Arimodu/wipbot/internal/app/archive"

// EventType represents a worker event type.
type EventType int

const (
	EventProgress EventType = iota // fractional download progress
	EventOutcome                   // pipeline outcome, Code keys a message template
)

// Outcome codes emitted by the worker. Each maps to exactly one configured
// chat message and one log line; none propagate past the worker boundary.
const (
	CodeDownloadStarted    = "download_started"
	CodeDownloadSuccess    = "download_success"
	CodeDownloadFailed     = "download_failed"
	CodeDownloadCancelled  = "download_cancelled"
	CodeTooManyEntries     = "too_many_entries"
	CodeMissingInfoDat     = "missing_info_dat"
	CodeContainsSubfolders = "contains_subfolders"
	CodeTooLarge           = "too_large"
	CodeExtractionFailed   = "extraction_failed"
	CodeBadExtension       = "bad_extension"
	CodeOther              = "other"
)

// Event is emitted as items move through the pipeline.
type Event struct {
	Type    EventType
	Code    string          // outcome code, set for EventOutcome
	Detail  string          // interpolation value for %s/%i templates
	Percent int             // set for EventProgress
	Result  *archive.Result // set on download_success
}

package ingest

import "fmt"

// Stage is a state of the ingestion state machine:
// received → extracted → normalized → chunked → embedded → uploaded → done,
// with failed reachable from any state.
type Stage string

// Ingestion stages.
const (
	StageReceived   Stage = "received"
	StageExtracted  Stage = "extracted"
	StageNormalized Stage = "normalized"
	StageChunked    Stage = "chunked"
	StageEmbedded   Stage = "embedded"
	StageUploaded   Stage = "uploaded"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// StageError reports the last stage reached before ingestion failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest failed after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

package vectorstore

import "fmt"

// PartialUploadError reports an upsert that stopped at a failed batch.
// Points before Committed are stored; nothing is rolled back.
type PartialUploadError struct {
	Committed int
	Total     int
	Err       error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("upsert stopped after %d of %d points: %v", e.Committed, e.Total, e.Err)
}

func (e *PartialUploadError) Unwrap() error { return e.Err }

package pdfrag

// IngestResult describes one stored document.
type IngestResult struct {
	DocumentID string // stable fingerprint of the normalized text
	Chunks     int    // chunks embedded and uploaded
}

// Answer is a generated reply with the chunks it was grounded on.
type Answer struct {
	Text   string
	Chunks []string
}

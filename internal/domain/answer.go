package domain

import "context"

// User-facing answers produced without calling the generative model.
const (
	AnswerNoResults   = "No relevant information found."
	AnswerUnreadable  = "Found results, but no readable text chunks were extracted."
	AnswerSearchError = "Error while searching the database."
	// AnswerFallback is the sentence the model is told to emit when the context lacks the answer.
	AnswerFallback = "I don't have enough information from the stored documents."
)

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Answer     string   `json:"answer"`
	ChunksUsed []string `json:"chunks_used"`
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

package usecase

import "github.com/m-mizutani/goerr/v2"

// Failure taxonomy of the memory engine. Every path that hits one of these
// degrades to "skip and continue"; nothing here ever aborts the
// conversational turn.
var (
	ErrClassifierUnavailable = goerr.New("classifier unavailable")
	ErrEmbeddingFailure      = goerr.New("embedding failure")
	ErrVectorIndex           = goerr.New("vector index failure")
	ErrSameFactClassifier    = goerr.New("same-fact classifier failure")
	ErrProfileSync           = goerr.New("profile sync failure")
)

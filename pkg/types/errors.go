package types

import "errors"

var (
	// ErrEmptyConversation indicates that a conversation with zero utterances
	// was supplied. Downstream consumers cannot meaningfully proceed with a
	// zero-size matrix, so this is surfaced instead of a degenerate result.
	ErrEmptyConversation = errors.New("conversation contains no utterances")

	// ErrMissingField indicates an ingested row lacks a required field
	// (text or speaker). Surfaced before any computation starts.
	ErrMissingField = errors.New("row is missing a required field")

	// ErrDuplicateID indicates two ingested rows carry the same explicit ID.
	ErrDuplicateID = errors.New("duplicate utterance id")

	// ErrInvalidConfig indicates a configuration parameter is out of range
	// or an axis selector carries an unknown value. The wrapped message
	// names the offending parameter.
	ErrInvalidConfig = errors.New("invalid analysis configuration")

	// ErrUtteranceNotFound indicates the requested utterance ID does not
	// exist in the conversation under analysis.
	ErrUtteranceNotFound = errors.New("utterance not found")
)

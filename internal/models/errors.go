package models

import "errors"

var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates no text extractor exists for a file type.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDimensionMismatch indicates two embeddings of different length were compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")
)

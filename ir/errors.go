package ir

import "errors"

// RepresentationError is the family of compile-time errors produced while
// building or validating the IR pattern graph, before any type inference
// runs.
var (
	ErrUnboundVariable      = errors.New("variable is not bound by any constraint")
	ErrLocallyBoundReuse    = errors.New("variable already locally bound in this scope")
	ErrIncompatibleCategory = errors.New("incompatible variable category narrowing")
)

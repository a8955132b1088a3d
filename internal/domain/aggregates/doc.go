// Package aggregates defines the write boundaries whose invariants must hold
// atomically, and the error taxonomy their implementations return.
//
// Contracts here avoid persistence details; implementations live in
// internal/data/aggregates.
package aggregates

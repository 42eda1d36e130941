package repository

import "errors"

// Sentinel errors shared across adapters. Per-symbol errors are isolated by
// the callers; only batch-level precondition violations abort a run.
var (
	ErrSourceUnavailable = errors.New("market source unavailable")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrTableNotFound     = errors.New("result table not found")
	ErrSchemaMismatch    = errors.New("result table schema mismatch")
	ErrDispatchFailed    = errors.New("dispatch failed")
	ErrHandleNotFound    = errors.New("dispatch handle not found")
	ErrEmptyUniverse     = errors.New("instrument universe is empty")
)

// Error kinds used in summaries and metrics labels.
const (
	KindDataUnavailable = "data_unavailable"
	KindSchemaMismatch  = "schema_mismatch"
	KindDispatchFailure = "dispatch_failure"
	KindStorage         = "storage"
	KindInternal        = "internal"
)

// Classify maps an error to its summary/metrics kind.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrSymbolNotFound):
		return KindDataUnavailable
	case errors.Is(err, ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, ErrDispatchFailed), errors.Is(err, ErrHandleNotFound):
		return KindDispatchFailure
	case errors.Is(err, ErrTableNotFound):
		return KindStorage
	default:
		return KindInternal
	}
}

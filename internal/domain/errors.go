package domain

import "fmt"

// FetchError reports a failed page fetch from an upstream feed. It carries the
// page offset so the caller can resume from where the fetch broke off. Retry
// is the caller's decision; adapters never retry internally.
type FetchError struct {
	Source SourceType
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s at offset %d: %v", e.Source, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaDiscoveryError reports that no candidate endpoint produced a usable
// schema after probing all of them. Terminal for the run; not retried.
type SchemaDiscoveryError struct {
	Source    SourceType
	Endpoints []string
}

func (e *SchemaDiscoveryError) Error() string {
	return fmt.Sprintf("schema discovery for %s failed: no usable date field across %d candidate endpoints", e.Source, len(e.Endpoints))
}

// NormalizationError reports a single record that could not be mapped onto
// the canonical shape, most commonly because no primary timestamp field was
// found under any known alias. The record is skipped; the run continues.
type NormalizationError struct {
	Source SourceType
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s record: %s", e.Source, e.Reason)
}

// LoadError reports a failure during staging, conflict resolution, or commit.
// The whole batch rolls back; there are no partial loads.
type LoadError struct {
	Source SourceType
	Stage  string // "begin", "stage", "resolve", "commit"
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s batch during %s: %v", e.Source, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

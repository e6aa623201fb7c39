// Package report parses the two scheduler report dialects: the structured
// JSON emitted by sacct/sinfo on recent Slurm releases, and the flat
// delimiter-separated output used on clusters that predate the JSON support.
//
// Parsing is pure: the same report bytes always produce the same entries and
// nothing outside the returned values is touched. Translation into typed
// records happens afterwards, in the translate package.
package report

import (
	"fmt"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/scrape/record"
)

// Entry is one parsed entity from a structured report. Raw holds the source
// fields verbatim; Fields holds the canonical fields produced by the handler
// table, keyed by their canonical names.
type Entry struct {
	Raw    record.RawFields
	Fields map[string]any
}

// UnknownFieldError reports a top-level field the handler table does not
// know. It is fatal on purpose: a new field in a Slurm upgrade must be
// triaged by a human, not silently dropped.
type UnknownFieldError struct {
	Entity string
	Field  string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown %s field %q in structured report", e.Entity, e.Field)
}

// UnsupportedVersionError reports a structured report produced by a Slurm
// release older than the handler tables were written against.
type UnsupportedVersionError struct {
	Major int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("structured report from unsupported slurm major version %d (need >= %d)", e.Major, minSlurmMajor)
}

// FieldCountError reports a flat report line whose token count does not match
// its header.
type FieldCountError struct {
	Line int
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("flat report line %d has %d fields, header has %d", e.Line, e.Got, e.Want)
}

package domain

import (
	"fmt"
	"strings"
)

// StatusKind is the machine-readable discriminator of a job status
type StatusKind string

// Job status kinds, in lifecycle order. Failure kinds are terminal side branches.
const (
	StatusPending          StatusKind = "pending"
	StatusRunningSourceA   StatusKind = "running_source_a"
	StatusSourceACompleted StatusKind = "source_a_completed"
	StatusRunningSourceB   StatusKind = "running_source_b"
	StatusSourceBCompleted StatusKind = "source_b_completed"
	StatusCompleted        StatusKind = "completed"

	StatusSourceAFailed StatusKind = "source_a_failed"
	StatusSourceBFailed StatusKind = "source_b_failed"
	StatusFailed        StatusKind = "failed"
)

// progressRank orders the non-failure kinds
var progressRank = map[StatusKind]int{
	StatusPending:          0,
	StatusRunningSourceA:   1,
	StatusSourceACompleted: 2,
	StatusRunningSourceB:   3,
	StatusSourceBCompleted: 4,
	StatusCompleted:        5,
}

// Status is a job status: a kind plus an optional free-text detail.
// On the wire it is rendered as "kind" or "kind:detail".
type Status struct {
	Kind   StatusKind
	Detail string
}

// NewStatus creates a status without detail
func NewStatus(kind StatusKind) Status {
	return Status{Kind: kind}
}

// Failure creates a failure status carrying a diagnostic detail
func Failure(kind StatusKind, detail string) Status {
	return Status{Kind: kind, Detail: strings.TrimSpace(detail)}
}

// String renders the status in its wire form
func (s Status) String() string {
	if s.Detail == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Detail
}

// IsFailure reports whether the status is one of the failure branches
func (s Status) IsFailure() bool {
	switch s.Kind {
	case StatusSourceAFailed, StatusSourceBFailed, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further automatic transition can happen
func (s Status) IsTerminal() bool {
	return s.IsFailure() || s.Kind == StatusCompleted
}

// CanTransitionTo reports whether moving from s to next respects the lifecycle:
// forward only, failures reachable from any non-terminal state, nothing leaves
// a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next.IsFailure() {
		return true
	}
	from, ok := progressRank[s.Kind]
	if !ok {
		return false
	}
	to, ok := progressRank[next.Kind]
	if !ok {
		return false
	}
	return to > from
}

// ParseStatus parses the wire form of a status. Only the part before the
// first ':' is interpreted; the rest is kept verbatim as detail.
func ParseStatus(raw string) (Status, error) {
	kind, detail, _ := strings.Cut(raw, ":")
	k := StatusKind(strings.TrimSpace(kind))

	switch k {
	case StatusPending, StatusRunningSourceA, StatusSourceACompleted,
		StatusRunningSourceB, StatusSourceBCompleted, StatusCompleted,
		StatusSourceAFailed, StatusSourceBFailed, StatusFailed:
		return Status{Kind: k, Detail: strings.TrimSpace(detail)}, nil
	}

	return Status{}, fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// MarshalText implements encoding.TextMarshaler so a Status serializes as its wire string
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

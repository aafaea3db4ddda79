// Package connector runs the external scrapers that produce raw hotel records
// for a job and translates job queries into each source's filter vocabulary.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrLaunch is returned when the connector process could not be started
	ErrLaunch = errors.New("connector launch failed")

	// ErrOutput is returned when the connector ran but its output is absent or corrupt
	ErrOutput = errors.New("connector output unusable")

	// ErrTimeout is returned when the connector did not finish in time
	ErrTimeout = errors.New("connector timed out")
)

// Error describes a failed connector invocation. It matches one of ErrLaunch,
// ErrOutput or ErrTimeout with errors.Is.
type Error struct {
	Source domain.Source
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(source domain.Source, kind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// Query is the input of one connector run
type Query struct {
	JobID    uuid.UUID
	Location string
	CheckIn  time.Time
	CheckOut time.Time
	PriceMin float64
	PriceMax float64
	Stars    float64
	Adults   int
	Rooms    int

	// OutputPath is where the connector writes its result batch. It is owned
	// by the job that requested the run.
	OutputPath string
}

// RawRecord is one hotel as emitted by a source, before normalization
type RawRecord struct {
	Title    string     `json:"title"`
	Price    FlexString `json:"price"`
	Stars    FlexString `json:"stars"`
	ImageURL string     `json:"image_url"`
	URL      string     `json:"url"`
}

// Connector produces the raw records of one source for a query
type Connector interface {
	Source() domain.Source
	Fetch(ctx context.Context, q Query) ([]RawRecord, error)
}

// FlexString holds a JSON scalar that sources emit either as a string or a
// number. Valid is false when the field was absent or null.
type FlexString struct {
	Value string
	Valid bool
}

// UnmarshalJSON accepts strings, numbers and null
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FlexString{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString{Value: s, Valid: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString{Value: n.String(), Valid: true}
	return nil
}

// MarshalJSON writes the value back as a string, or null when not valid
func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Text creates a valid FlexString
func Text(s string) FlexString {
	return FlexString{Value: s, Valid: true}
}

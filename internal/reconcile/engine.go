// Package reconcile matches Source B records onto the listings created from
// Source A by fuzzy title similarity.
package reconcile

import (
	"fmt"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/normalize"
	"github.com/google/uuid"
)

// DefaultThreshold is the minimum title similarity accepted as the same hotel
const DefaultThreshold = 0.8

// Policy decides whether a listing may absorb more than one record per run
type Policy string

const (
	// PolicyExclusive removes a matched listing from the candidate pool
	PolicyExclusive Policy = "exclusive"
	// PolicyGreedy lets every record pick its best listing; later matches overwrite earlier ones
	PolicyGreedy Policy = "greedy"
)

// Match pairs a Source B record with the listing it merges into
type Match struct {
	ListingID uuid.UUID
	Title     string
	Score     float64
	Record    normalize.Record
}

// Patch returns the listing update this match produces
func (m Match) Patch() domain.ListingPatch {
	p := domain.ListingPatch{PriceB: m.Record.Price}
	if m.Record.URL != "" {
		url := m.Record.URL
		p.URLB = &url
	}
	return p
}

// Result is the outcome of reconciling one batch
type Result struct {
	Matches []Match
	Dropped []normalize.Record
}

// Engine computes matches. It is pure: applying them is the caller's job.
type Engine struct {
	threshold float64
	policy    Policy
}

// NewEngine creates an engine with the given acceptance threshold and policy
func NewEngine(threshold float64, policy Policy) (*Engine, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("match threshold must be in (0, 1], got %v", threshold)
	}
	switch policy {
	case "":
		policy = PolicyExclusive
	case PolicyExclusive, PolicyGreedy:
	default:
		return nil, fmt.Errorf("unknown match policy %q", policy)
	}
	return &Engine{threshold: threshold, policy: policy}, nil
}

// Policy returns the configured policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Reconcile matches records, in order, against listings. Each record goes to
// the listing with the highest title similarity at or above the threshold;
// ties keep the earliest listing. Records without a candidate are dropped.
func (e *Engine) Reconcile(listings []domain.Listing, records []normalize.Record) Result {
	var res Result
	claimed := make([]bool, len(listings))

	for _, rec := range records {
		best, score := -1, 0.0
		for i := range listings {
			if claimed[i] {
				continue
			}
			s := TitleSimilarity(rec.Title, listings[i].Title)
			if s >= e.threshold && s > score {
				best, score = i, s
			}
		}

		if best < 0 {
			res.Dropped = append(res.Dropped, rec)
			continue
		}

		if e.policy == PolicyExclusive {
			claimed[best] = true
		}
		res.Matches = append(res.Matches, Match{
			ListingID: listings[best].ID,
			Title:     listings[best].Title,
			Score:     score,
			Record:    rec,
		})
	}

	return res
}

// Package normalize turns raw connector records into canonical listing fields.
package normalize

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/connector"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
)

// UnknownTitle is used for Source A records that carry no title
const UnknownTitle = "Unknown"

// DefaultSourceBRate converts Source B prices (USD) into the reference currency (BDT)
const DefaultSourceBRate = 122.0

// currencyMarkers are stripped from price text before parsing
var currencyMarkers = []string{"US$", "USD", "BDT", "$", "৳", "Tk"}

// Record is a normalized source record: prices in the reference currency
type Record struct {
	Title    string
	Price    *float64
	Stars    *float64
	ImageURL *string
	URL      string
}

// Normalizer applies per-source currency conversion and field coercion.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	rates map[domain.Source]float64
}

// New creates a normalizer. sourceBRate is the multiplier from Source B's
// currency into the reference currency; Source A is already in it.
func New(sourceBRate float64) (*Normalizer, error) {
	if sourceBRate <= 0 || math.IsInf(sourceBRate, 0) || math.IsNaN(sourceBRate) {
		return nil, fmt.Errorf("invalid source B conversion rate: %v", sourceBRate)
	}
	return &Normalizer{
		rates: map[domain.Source]float64{
			domain.SourceA: 1,
			domain.SourceB: sourceBRate,
		},
	}, nil
}

// Rate returns the conversion factor applied to a source's prices
func (n *Normalizer) Rate(source domain.Source) float64 {
	return n.rates[source]
}

// Normalize converts one raw record. It fails with domain.ErrMalformedRecord
// when the record cannot be used; absent prices never fail.
func (n *Normalizer) Normalize(source domain.Source, raw connector.RawRecord) (Record, error) {
	rate, ok := n.rates[source]
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown source %q", domain.ErrMalformedRecord, source)
	}

	rec := Record{
		Title: strings.TrimSpace(raw.Title),
		URL:   strings.TrimSpace(raw.URL),
		Stars: parseStars(raw.Stars),
	}

	if rec.Title == "" {
		if source != domain.SourceA {
			return Record{}, fmt.Errorf("%w: missing title", domain.ErrMalformedRecord)
		}
		rec.Title = UnknownTitle
	}

	if img := strings.TrimSpace(raw.ImageURL); img != "" {
		rec.ImageURL = &img
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q: %v", domain.ErrMalformedRecord, rec.Title, err)
	}
	switch {
	case price != nil:
		converted := roundCents(*price * rate)
		rec.Price = &converted
	case source == domain.SourceA:
		// listings always carry a Source A price
		zero := 0.0
		rec.Price = &zero
	}

	return rec, nil
}

// NormalizeBatch normalizes records in order, skipping malformed ones with a warning
func (n *Normalizer) NormalizeBatch(source domain.Source, raws []connector.RawRecord, logger *slog.Logger) []Record {
	out := make([]Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := n.Normalize(source, raw)
		if err != nil {
			logger.Warn("Skipping malformed record",
				slog.String("source", string(source)),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// NewListing builds a job listing from a normalized Source A record
func NewListing(jobID uuid.UUID, rec Record, now time.Time) domain.Listing {
	price := 0.0
	if rec.Price != nil {
		price = *rec.Price
	}
	return domain.Listing{
		ID:        uuid.New(),
		JobID:     jobID,
		Title:     rec.Title,
		PriceA:    price,
		URLA:      rec.URL,
		Stars:     rec.Stars,
		ImageURL:  rec.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// parsePrice returns nil for an absent or blank price
func parsePrice(v connector.FlexString) (*float64, error) {
	if !v.Valid {
		return nil, nil
	}

	text := v.Value
	for _, marker := range currencyMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\t', '\n':
			return -1
		}
		return r
	}, text)

	if text == "" {
		return nil, nil
	}

	price, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("price %q is not a number", v.Value)
	}
	if price < 0 {
		return nil, fmt.Errorf("price %q is negative", v.Value)
	}
	return &price, nil
}

// parseStars returns nil for absent, zero or unparseable ratings and clamps
// the rest into [0, MaxStars]
func parseStars(v connector.FlexString) *float64 {
	if !v.Valid {
		return nil
	}
	stars, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil || math.IsNaN(stars) || stars == 0 {
		return nil
	}
	stars = math.Max(0, math.Min(domain.MaxStars, stars))
	return &stars
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

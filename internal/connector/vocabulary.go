package connector

import (
	"fmt"
	"math"

	"github.com/cuongbtq/hotel-scout/internal/domain"
)

const dateLayout = "2006-01-02"

// Param is one named argument handed to a connector process
type Param struct {
	Name  string
	Value string
}

// ParamsFunc translates a query into a source's filter vocabulary
type ParamsFunc func(q Query) []Param

// SourceAParams renders the booking filters: the price band as a single
// "BDT-<min>-<max>-1" string and the star rating as an integer class.
func SourceAParams(q Query) []Param {
	return []Param{
		{Name: "location", Value: q.Location},
		{Name: "checkin", Value: q.CheckIn.Format(dateLayout)},
		{Name: "checkout", Value: q.CheckOut.Format(dateLayout)},
		{Name: "price_range", Value: fmt.Sprintf("BDT-%d-%d-1", truncate(q.PriceMin), truncate(q.PriceMax))},
		{Name: "hotel_class", Value: fmt.Sprintf("%d", truncate(q.Stars))},
	}
}

// SourceBParams renders the agoda filters: occupancy, integer star rating and
// separate price bounds.
func SourceBParams(q Query) []Param {
	adults := q.Adults
	if adults <= 0 {
		adults = DefaultAdults
	}
	rooms := q.Rooms
	if rooms <= 0 {
		rooms = DefaultRooms
	}

	return []Param{
		{Name: "location", Value: q.Location},
		{Name: "checkin", Value: q.CheckIn.Format(dateLayout)},
		{Name: "checkout", Value: q.CheckOut.Format(dateLayout)},
		{Name: "adults", Value: fmt.Sprintf("%d", adults)},
		{Name: "rooms", Value: fmt.Sprintf("%d", rooms)},
		{Name: "hotel_star_rating", Value: fmt.Sprintf("%d", truncate(q.Stars))},
		{Name: "price_from", Value: fmt.Sprintf("%d", truncate(q.PriceMin))},
		{Name: "price_to", Value: fmt.Sprintf("%d", truncate(q.PriceMax))},
	}
}

// Occupancy defaults for sources that need them
const (
	DefaultAdults = 2
	DefaultRooms  = 1
)

// ParamsFor returns the vocabulary of a known source
func ParamsFor(source domain.Source) (ParamsFunc, error) {
	switch source {
	case domain.SourceA:
		return SourceAParams, nil
	case domain.SourceB:
		return SourceBParams, nil
	default:
		return nil, fmt.Errorf("no parameter vocabulary for source %q", source)
	}
}

func truncate(v float64) int64 {
	return int64(math.Trunc(v))
}

package card

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the kind of itinerary card.
type Type string

const (
	TypeNote           Type = "note"
	TypeDestination    Type = "destination"
	TypeTransportation Type = "transportation"
	TypeGeneral        Type = "general"
)

// Valid reports whether t is a known card type.
func (t Type) Valid() bool {
	switch t {
	case TypeNote, TypeDestination, TypeTransportation, TypeGeneral:
		return true
	}
	return false
}

// TransportMode is how a transportation card travels.
type TransportMode string

const (
	ModeFlight TransportMode = "flight"
	ModeTrain  TransportMode = "train"
	ModeBus    TransportMode = "bus"
	ModeCar    TransportMode = "car"
	ModeBoat   TransportMode = "boat"
	ModeOther  TransportMode = "other"
)

// Valid reports whether m is a known mode.
func (m TransportMode) Valid() bool {
	switch m {
	case ModeFlight, ModeTrain, ModeBus, ModeCar, ModeBoat, ModeOther:
		return true
	}
	return false
}

// Location is a place attached to a destination card.
type Location struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
	PlaceID string  `json:"placeId,omitempty"`
}

// Transport describes a leg of travel.
type Transport struct {
	Mode      TransportMode `json:"mode"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Carrier   string        `json:"carrier,omitempty"`
	Reference string        `json:"reference,omitempty"`
}

// Card is one itinerary entry of a trip.
type Card struct {
	ID          string           `json:"id"`
	TripID      string           `json:"tripId"`
	Type        Type             `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	CreatedBy   string           `json:"createdBy"`
	StartTime   *time.Time       `json:"startTime,omitempty"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Location    *Location        `json:"location,omitempty"`
	Transport   *Transport       `json:"transport,omitempty"`
	Checked     bool             `json:"checked"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

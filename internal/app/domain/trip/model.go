package trip

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UnassignedTab holds cards that are not scheduled on a specific day.
	UnassignedTab = "unassigned"

	MaxDays    = 60
	MaxNameLen = 100
)

// Member is a participant of a trip.
type Member struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Trip is a group trip. StartDate and EndDate are optional calendar dates
// normalised to UTC midnight; NumDays is always set.
type Trip struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Destination string           `json:"destination,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	OwnerID     string           `json:"ownerId"`
	Members     []Member         `json:"members"`
	StartDate   *time.Time       `json:"startDate,omitempty"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
	NumDays     int              `json:"numDays"`
	Currency    string           `json:"currency"`
	Budget      *decimal.Decimal `json:"budget,omitempty"`
	OrderInTab  Order            `json:"orderInTab"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// IsMember reports whether userID belongs to the trip.
func (t Trip) IsMember(userID string) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns member user IDs in join order.
func (t Trip) MemberIDs() []string {
	out := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		out = append(out, m.UserID)
	}
	return out
}

// Span returns the trip's current schedule.
func (t Trip) Span() Span {
	return Span{Start: t.StartDate, Days: t.NumDays}
}

// NormalizeDate truncates d to midnight UTC.
func NormalizeDate(d time.Time) time.Time {
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// DaysInclusive returns the number of calendar days from start to end,
// counting both ends.
func DaysInclusive(start, end time.Time) int {
	return daysBetween(NormalizeDate(start), NormalizeDate(end)) + 1
}

package poll

import "time"

// Option is one answer of a poll.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Poll is a group vote inside a trip. Votes maps option ID to voter IDs.
type Poll struct {
	ID            string              `json:"id"`
	TripID        string              `json:"tripId"`
	Question      string              `json:"question"`
	Options       []Option            `json:"options"`
	AllowMultiple bool                `json:"allowMultiple"`
	Anonymous     bool                `json:"anonymous"`
	CreatedBy     string              `json:"createdBy"`
	ClosesAt      *time.Time          `json:"closesAt,omitempty"`
	Closed        bool                `json:"closed"`
	Votes         map[string][]string `json:"votes"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// IsOpen reports whether votes are accepted at now.
func (p Poll) IsOpen(now time.Time) bool {
	if p.Closed {
		return false
	}
	return p.ClosesAt == nil || now.Before(*p.ClosesAt)
}

// HasOption reports whether optionID belongs to the poll.
func (p Poll) HasOption(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Result is the tally of one option.
type Result struct {
	OptionID string   `json:"optionId"`
	Text     string   `json:"text"`
	Count    int      `json:"count"`
	Voters   []string `json:"voters,omitempty"`
}

// Results tallies votes in option order. Voter IDs are omitted for
// anonymous polls.
func (p Poll) Results() []Result {
	out := make([]Result, 0, len(p.Options))
	for _, o := range p.Options {
		voters := p.Votes[o.ID]
		r := Result{OptionID: o.ID, Text: o.Text, Count: len(voters)}
		if !p.Anonymous {
			r.Voters = append([]string{}, voters...)
		}
		out = append(out, r)
	}
	return out
}

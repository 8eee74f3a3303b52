package checklist

import "time"

// Kind separates shared task lists from personal packing lists.
type Kind string

const (
	KindTask    Kind = "task"
	KindPacking Kind = "packing"
)

// Checklist belongs to a trip. Packing lists are visible to their owner only.
type Checklist struct {
	ID        string    `json:"id"`
	TripID    string    `json:"tripId"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"ownerId"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is one line of a checklist.
type Item struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Done       bool       `json:"done"`
	AssigneeID string     `json:"assigneeId,omitempty"`
	Quantity   int        `json:"quantity,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
}

// VisibleTo reports whether userID may see the list.
func (c Checklist) VisibleTo(userID string) bool {
	return c.Kind != KindPacking || c.OwnerID == userID
}

// ItemIndex returns the position of itemID or -1.
func (c Checklist) ItemIndex(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

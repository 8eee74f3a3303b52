package trip

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Order maps a tab key to the ordered card IDs shown in that tab. Day tabs
// are keyed "0" .. "NumDays-1".
type Order map[string][]string

// DayKey returns the tab key for a zero-based day index.
func DayKey(day int) string {
	return strconv.Itoa(day)
}

// DayIndex parses a day tab key. ok is false for non-day keys.
func DayIndex(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 || DayKey(n) != key {
		return 0, false
	}
	return n, true
}

// NewOrder returns an empty layout with one bucket per day plus the
// unassigned bucket.
func NewOrder(days int) Order {
	o := make(Order, days+1)
	for i := 0; i < days; i++ {
		o[DayKey(i)] = []string{}
	}
	o[UnassignedTab] = []string{}
	return o
}

// Clone deep-copies the layout.
func (o Order) Clone() Order {
	out := make(Order, len(o))
	for k, ids := range o {
		out[k] = append([]string{}, ids...)
	}
	return out
}

// HasTab reports whether key is a bucket of the layout.
func (o Order) HasTab(key string) bool {
	_, ok := o[key]
	return ok
}

// Locate returns the bucket and position of cardID.
func (o Order) Locate(cardID string) (string, int, bool) {
	for k, ids := range o {
		for i, id := range ids {
			if id == cardID {
				return k, i, true
			}
		}
	}
	return "", -1, false
}

// Remove deletes cardID from whichever bucket holds it.
func (o Order) Remove(cardID string) bool {
	k, i, ok := o.Locate(cardID)
	if !ok {
		return false
	}
	ids := o[k]
	o[k] = append(ids[:i:i], ids[i+1:]...)
	return true
}

// Insert places cardID in bucket key at pos. A negative or out-of-range pos
// appends.
func (o Order) Insert(key, cardID string, pos int) {
	ids := o[key]
	if pos < 0 || pos >= len(ids) {
		o[key] = append(ids, cardID)
		return
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, cardID)
	out = append(out, ids[pos:]...)
	o[key] = out
}

// CardIDs returns every card ID in the layout.
func (o Order) CardIDs() []string {
	var out []string
	for _, k := range o.Keys() {
		out = append(out, o[k]...)
	}
	return out
}

// Keys returns day keys in numeric order followed by other keys sorted
// lexically.
func (o Order) Keys() []string {
	var days []int
	var other []string
	for k := range o {
		if d, ok := DayIndex(k); ok {
			days = append(days, d)
		} else {
			other = append(other, k)
		}
	}
	sort.Ints(days)
	sort.Strings(other)
	out := make([]string, 0, len(o))
	for _, d := range days {
		out = append(out, DayKey(d))
	}
	return append(out, other...)
}

// Span is the schedule of a trip: an optional start date and a day count.
type Span struct {
	Start *time.Time
	Days  int
}

// Equal reports whether two spans describe the same schedule.
func (s Span) Equal(other Span) bool {
	if s.Days != other.Days {
		return false
	}
	if (s.Start == nil) != (other.Start == nil) {
		return false
	}
	return s.Start == nil || NormalizeDate(*s.Start).Equal(NormalizeDate(*other.Start))
}

// ReassignResult describes what ReassignTabs did.
type ReassignResult struct {
	Order Order
	// Moved counts cards pushed into the unassigned bucket because their day
	// no longer exists.
	Moved int
}

// ReassignTabs rebuilds the day buckets of order for a new schedule.
//
// When both spans have a start date each old day keeps its calendar date, so
// bucket i moves to i + (from.Start - to.Start). Otherwise buckets keep their
// index. Cards landing outside [0, to.Days) are appended to the unassigned
// bucket in day order. Non-day buckets are carried over unchanged.
func ReassignTabs(order Order, from, to Span) ReassignResult {
	out := NewOrder(to.Days)
	for k, ids := range order {
		if _, isDay := DayIndex(k); isDay {
			continue
		}
		out[k] = append([]string{}, ids...)
	}

	offset := 0
	if from.Start != nil && to.Start != nil {
		offset = daysBetween(NormalizeDate(*to.Start), NormalizeDate(*from.Start))
	}

	moved := 0
	for _, k := range order.Keys() {
		day, isDay := DayIndex(k)
		if !isDay {
			continue
		}
		ids := order[k]
		target := day + offset
		if target >= 0 && target < to.Days {
			key := DayKey(target)
			out[key] = append(out[key], ids...)
			continue
		}
		out[UnassignedTab] = append(out[UnassignedTab], ids...)
		moved += len(ids)
	}

	return ReassignResult{Order: out, Moved: moved}
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

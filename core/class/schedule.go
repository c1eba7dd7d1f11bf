package class

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoDaysSelected = errors.New("at least one day of the week must be selected")
	ErrSlotTimeOrder  = errors.New("start time must be before end time")
)

// Slot is one concrete (start, end) pair generated from a Recurrence.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Recurrence is a weekly day-of-week pattern repeated over a number of weeks.
// Days is Sunday-first. The generated dates span the weeks starting at the
// week containing Anchor; days earlier in that week than Anchor are included.
type Recurrence struct {
	Anchor      time.Time `json:"anchor" validate:"required"`
	Days        [7]bool   `json:"days"`
	Weeks       int       `json:"weeks" validate:"required,min=1"`
	StartHour   int       `json:"startHour" validate:"min=0,max=23"`
	StartMinute int       `json:"startMinute" validate:"min=0,max=59"`
	EndHour     int       `json:"endHour" validate:"min=0,max=23"`
	EndMinute   int       `json:"endMinute" validate:"min=0,max=59"`
}

// Slots expands the recurrence into concrete time slots, sorted ascending by
// start time. It fails before anything is persisted when no day is selected
// or when any generated slot would not satisfy start < end.
func (r Recurrence) Slots() ([]Slot, error) {
	var any bool
	for _, selected := range r.Days {
		if selected {
			any = true
			break
		}
	}
	if !any {
		return nil, ErrNoDaysSelected
	}

	loc := r.Anchor.Location()
	y, m, d := r.Anchor.Date()
	anchor := time.Date(y, m, d, 0, 0, 0, 0, loc)
	weekStart := anchor.AddDate(0, 0, -int(anchor.Weekday()))

	slots := make([]Slot, 0, r.Weeks*7)
	for week := 0; week < r.Weeks; week++ {
		for day := 0; day < 7; day++ {
			if !r.Days[day] {
				continue
			}
			date := weekStart.AddDate(0, 0, day+week*7)
			dy, dm, dd := date.Date()
			slot := Slot{
				Start: time.Date(dy, dm, dd, r.StartHour, r.StartMinute, 0, 0, loc),
				End:   time.Date(dy, dm, dd, r.EndHour, r.EndMinute, 0, 0, loc),
			}
			if !slot.Start.Before(slot.End) {
				return nil, ErrSlotTimeOrder
			}
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}

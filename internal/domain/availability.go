package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	MinSlotMinutes = 15
	MaxSlotMinutes = 120
)

type Doctor struct {
	bun.BaseModel `bun:"table:doctors"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Name        string    `bun:"name,notnull"`
	Specialty   string    `bun:"specialty"`
	Active      bool      `bun:"active,notnull"`
	IsAvailable bool      `bun:"is_available,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (d *Doctor) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if d.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			d.ID = id
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		d.UpdatedAt = now
	}
	return nil
}

// AvailabilityRule is one recurring weekly working window for a doctor.
// Start and end are minutes since midnight in the facility's local time.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID           uuid.UUID    `bun:"id,pk,type:uuid"`
	DoctorID     uuid.UUID    `bun:"doctor_id,notnull,type:uuid"`
	DayOfWeek    time.Weekday `bun:"day_of_week,notnull"`
	StartMinutes int          `bun:"start_minutes,notnull"`
	EndMinutes   int          `bun:"end_minutes,notnull"`
	SlotMinutes  int          `bun:"slot_minutes,notnull"`
	Active       bool         `bun:"active,notnull"`
	CreatedAt    time.Time    `bun:"created_at,notnull"`
	UpdatedAt    time.Time    `bun:"updated_at,notnull"`
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

func (r AvailabilityRule) Usable() bool {
	return r.StartMinutes < r.EndMinutes &&
		r.SlotMinutes >= MinSlotMinutes &&
		r.SlotMinutes <= MaxSlotMinutes
}

// SlotStarts enumerates the candidate start times for one rule. The last
// valid start is EndMinutes - SlotMinutes: a slot whose end would spill past
// the window is never generated, so an uneven window truncates its tail.
// A rule that fits no whole slot yields an empty slice, not an error.
func (r AvailabilityRule) SlotStarts() []int {
	if !r.Usable() {
		return nil
	}
	out := make([]int, 0, (r.EndMinutes-r.StartMinutes)/r.SlotMinutes)
	for start := r.StartMinutes; start+r.SlotMinutes <= r.EndMinutes; start += r.SlotMinutes {
		out = append(out, start)
	}
	return out
}

// Covers reports whether minutes is an exact slot start under this rule.
// Off-grid times inside the window (09:15 in a 09:00/30min window) are not
// covered.
func (r AvailabilityRule) Covers(minutes int) bool {
	if !r.Usable() {
		return false
	}
	if minutes < r.StartMinutes || minutes+r.SlotMinutes > r.EndMinutes {
		return false
	}
	return (minutes-r.StartMinutes)%r.SlotMinutes == 0
}

// MergeSlotStarts unions the slot starts of several rules, de-duplicating
// identical starts from overlapping rules, sorted ascending.
func MergeSlotStarts(rules []AvailabilityRule) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0, 16)
	for _, r := range rules {
		for _, start := range r.SlotStarts() {
			if _, ok := seen[start]; ok {
				continue
			}
			seen[start] = struct{}{}
			out = append(out, start)
		}
	}
	sort.Ints(out)
	return out
}

// FilterHeld removes starts present in the held set (times of non-cancelled
// appointments) from an ascending slot list.
func FilterHeld(starts []int, held map[int]struct{}) []int {
	if len(held) == 0 {
		return starts
	}
	out := make([]int, 0, len(starts))
	for _, s := range starts {
		if _, ok := held[s]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

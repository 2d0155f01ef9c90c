// Package pricing implements the time-anchored pricing vectors that drive the
// exchange price of an offer. A vector fixes a base price at an activation
// instant and grows it by simple APR accrual in discrete steps; the set keeps
// a bounded history of vectors so past regimes stay queryable.
package pricing

import (
	"errors"
	"fmt"

	"github.com/meridian-fi/exchange/backend/internal/fixedmath"
)

// Capacity is the fixed slot count of a vector set.
const Capacity = 10

var (
	ErrNoActiveVector   = errors.New("no active pricing vector")
	ErrNoPreviousVector = errors.New("no previous pricing vector")
	ErrVectorNotFound   = errors.New("pricing vector not found")
	ErrVectorExists     = errors.New("pricing vector start time already exists")
	ErrVectorNotFuture  = errors.New("pricing vector start time must be in the future")
	ErrSetFull          = errors.New("pricing vector set full with no elapsed vector to evict")
	ErrInvalidVector    = errors.New("invalid pricing vector")
)

// Vector is one discrete pricing regime. StartTime is the effective
// activation instant; BaseTime is the originally requested one and may
// precede StartTime when the vector was added late. A zero StartTime marks an
// empty slot.
type Vector struct {
	StartTime   int64  `json:"start_time"`
	BaseTime    int64  `json:"base_time"`
	BasePrice   uint64 `json:"base_price"`
	APR         uint64 `json:"apr"`
	StepSeconds uint64 `json:"step_seconds"`
}

// IsZero reports whether the slot is a tombstone.
func (v Vector) IsZero() bool {
	return v.StartTime == 0
}

// PriceAt returns the 1e9-scale price of the vector at t. The first step
// counts as one full interval, so the price at StartTime already includes one
// step of accrual; that off-by-one is a compatibility contract with deployed
// consumers and must not be "fixed".
func (v Vector) PriceAt(t int64) (uint64, error) {
	if v.IsZero() || t < v.StartTime {
		return 0, ErrNoActiveVector
	}
	if v.StepSeconds == 0 {
		return 0, fmt.Errorf("%w: zero step duration", ErrInvalidVector)
	}
	steps := uint64(t-v.StartTime)/v.StepSeconds + 1
	growth, err := fixedmath.GrowthFactor(v.APR, steps, v.StepSeconds)
	if err != nil {
		return 0, err
	}
	return fixedmath.MulScaled(v.BasePrice, growth)
}

// Set is a fixed-capacity collection of vectors for one token pair. The zero
// value is an empty set. Slots are unordered; lookups scan all ten entries.
type Set struct {
	slots [Capacity]Vector
}

// Insert activates a vector at max(BaseTime, now). When every slot is taken
// it evicts the earliest already-elapsed vector to make room and returns it;
// the second return value reports whether an eviction happened.
func (s *Set) Insert(v Vector, now int64) (Vector, bool, error) {
	if v.BasePrice == 0 || v.StepSeconds == 0 {
		return Vector{}, false, fmt.Errorf("%w: base price and step duration are required", ErrInvalidVector)
	}

	v.StartTime = v.BaseTime
	if now > v.StartTime {
		v.StartTime = now
	}
	if v.StartTime <= 0 {
		return Vector{}, false, fmt.Errorf("%w: non-positive start time", ErrInvalidVector)
	}

	free := -1
	for i, slot := range s.slots {
		if slot.IsZero() {
			if free < 0 {
				free = i
			}
			continue
		}
		if slot.StartTime == v.StartTime {
			return Vector{}, false, fmt.Errorf("%w: start time %d", ErrVectorExists, v.StartTime)
		}
	}

	if free >= 0 {
		s.slots[free] = v
		return Vector{}, false, nil
	}

	// Full: evict the oldest elapsed vector, FIFO by activation time.
	victim := -1
	for i, slot := range s.slots {
		if slot.StartTime > now {
			continue
		}
		if victim < 0 || slot.StartTime < s.slots[victim].StartTime {
			victim = i
		}
	}
	if victim < 0 {
		return Vector{}, false, ErrSetFull
	}
	evicted := s.slots[victim]
	s.slots[victim] = v
	return evicted, true, nil
}

// ActiveAt returns the vector with the greatest StartTime at or before t.
func (s *Set) ActiveAt(t int64) (Vector, error) {
	best := -1
	for i, slot := range s.slots {
		if slot.IsZero() || slot.StartTime > t {
			continue
		}
		if best < 0 || slot.StartTime > s.slots[best].StartTime {
			best = i
		}
	}
	if best < 0 {
		return Vector{}, ErrNoActiveVector
	}
	return s.slots[best], nil
}

// PreviousAt returns the vector immediately preceding the active one at t.
func (s *Set) PreviousAt(t int64) (Vector, error) {
	active, err := s.ActiveAt(t)
	if err != nil {
		return Vector{}, err
	}
	best := -1
	for i, slot := range s.slots {
		if slot.IsZero() || slot.StartTime >= active.StartTime {
			continue
		}
		if best < 0 || slot.StartTime > s.slots[best].StartTime {
			best = i
		}
	}
	if best < 0 {
		return Vector{}, ErrNoPreviousVector
	}
	return s.slots[best], nil
}

// Delete tombstones the vector with the exact start time. Only strictly
// future vectors may be deleted; the active vector and all past ones are
// protected because trades and adjustment queries may already reference them.
func (s *Set) Delete(startTime int64, now int64) (Vector, error) {
	if startTime == 0 {
		return Vector{}, ErrVectorNotFound
	}
	for i, slot := range s.slots {
		if slot.IsZero() || slot.StartTime != startTime {
			continue
		}
		if startTime <= now {
			return Vector{}, fmt.Errorf("%w: start time %d, now %d", ErrVectorNotFuture, startTime, now)
		}
		removed := slot
		s.slots[i] = Vector{}
		return removed, nil
	}
	return Vector{}, fmt.Errorf("%w: start time %d", ErrVectorNotFound, startTime)
}

// PriceAt prices the set at t using the active vector.
func (s *Set) PriceAt(t int64) (uint64, error) {
	active, err := s.ActiveAt(t)
	if err != nil {
		return 0, err
	}
	return active.PriceAt(t)
}

// AdjustmentAt returns the signed difference between the active vector's
// price and the previous vector's price evaluated at the same instant.
func (s *Set) AdjustmentAt(t int64) (int64, error) {
	current, err := s.PriceAt(t)
	if err != nil {
		return 0, err
	}
	previous, err := s.PreviousAt(t)
	if err != nil {
		return 0, err
	}
	previousPrice, err := previous.PriceAt(t)
	if err != nil {
		return 0, err
	}
	return int64(current) - int64(previousPrice), nil
}

// Vectors returns the live vectors ordered by activation time.
func (s *Set) Vectors() []Vector {
	out := make([]Vector, 0, Capacity)
	for _, slot := range s.slots {
		if slot.IsZero() {
			continue
		}
		out = append(out, slot)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartTime < out[j-1].StartTime; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Len reports the number of live vectors.
func (s *Set) Len() int {
	n := 0
	for _, slot := range s.slots {
		if !slot.IsZero() {
			n++
		}
	}
	return n
}

// Restore places a vector into a free slot without the insert-time clamping,
// used when rehydrating a set from storage.
func (s *Set) Restore(v Vector) error {
	if v.IsZero() {
		return ErrInvalidVector
	}
	for _, slot := range s.slots {
		if !slot.IsZero() && slot.StartTime == v.StartTime {
			return fmt.Errorf("%w: start time %d", ErrVectorExists, v.StartTime)
		}
	}
	for i, slot := range s.slots {
		if slot.IsZero() {
			s.slots[i] = v
			return nil
		}
	}
	return ErrSetFull
}

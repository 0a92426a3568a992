// Package segtable implements the segment table that backs a Segward
// allocator: three parallel arrays indexed by segment id, kept as
// structure-of-arrays (rather than one array of structs) so the linear
// replacement scan stays cache-friendly.
package segtable

import "fmt"

// State is one of the four segment lifecycle states.
type State int32

const (
	// Empty segments have never been written to. They and Retired
	// segments are equivalent candidates during replacement search.
	Empty State = iota
	// Active is the current write target for bump allocation.
	Active
	// Full holds live data but accepts no new allocations.
	Full
	// Retired has drained to zero live allocations and can be reused.
	Retired
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Active:
		return "ACTIVE"
	case Full:
		return "FULL"
	case Retired:
		return "RETIRED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Table holds the per-segment counters, cursors, and states for N
// segments. The zero value of each slice element is Empty/0/0, matching
// spec invariant 5 (EMPTY/RETIRED segments have counter == 0 and
// cursor == 0) for every segment before first use.
type Table struct {
	counters []int32
	cursors  []uint32
	states   []State
}

// New allocates a segment table for n segments, all initially EMPTY.
func New(n int) *Table {
	return &Table{
		counters: make([]int32, n),
		cursors:  make([]uint32, n),
		states:   make([]State, n),
	}
}

// Len returns the number of segments in the table.
func (t *Table) Len() int { return len(t.states) }

func (t *Table) State(i int) State   { return t.states[i] }
func (t *Table) Counter(i int) int32 { return t.counters[i] }
func (t *Table) Cursor(i int) uint32 { return t.cursors[i] }

func (t *Table) SetState(i int, s State)   { t.states[i] = s }
func (t *Table) SetCursor(i int, c uint32) { t.cursors[i] = c }

// IncrementCounter bumps segment i's live-allocation counter by one.
func (t *Table) IncrementCounter(i int) {
	t.counters[i]++
}

// DecrementCounter reduces segment i's live-allocation counter by one and
// returns the counter's value after the decrement. The caller decides what that
// means (spec.md's corrected RETIRED transition lives in the allocator,
// not here, so this package stays a pure bookkeeping structure).
func (t *Table) DecrementCounter(i int) (postDecrement int32) {
	t.counters[i]--
	return t.counters[i]
}

// ReplacementSearch returns the lowest-indexed segment whose state is
// EMPTY or RETIRED, or -1 if none qualifies. This is the deterministic,
// platform-independent tie-break spec.md §4.3 mandates.
func (t *Table) ReplacementSearch() int {
	for i, s := range t.states {
		if s == Empty || s == Retired {
			return i
		}
	}

	return -1
}

// Counts returns the number of segments currently in each state, for
// diagnostics only — never consulted on the allocate/deallocate hot path.
func (t *Table) Counts() (empty, active, full, retired int) {
	for _, s := range t.states {
		switch s {
		case Empty:
			empty++
		case Active:
			active++
		case Full:
			full++
		case Retired:
			retired++
		}
	}

	return
}

// LiveAllocations returns the sum of all segment counters, i.e. the total
// number of outstanding allocations across the table (spec.md §8 law 5).
func (t *Table) LiveAllocations() int64 {
	var total int64
	for _, c := range t.counters {
		total += int64(c)
	}

	return total
}

package rotation

import (
	"sort"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
)

// MaxPreviewShifts caps the number of shifts a single preview may expand.
const MaxPreviewShifts = 100

// Segment is a contiguous interval with a single responder.
type Segment struct {
	UserID     string    `json:"user_id"`
	ShiftIndex int       `json:"shift_index"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	OverrideID string    `json:"override_id,omitempty"`
}

// Preview expands the next n shifts, beginning with the shift that contains
// from (or the first shift when from precedes the schedule start). Overrides
// split shifts into separate segments.
func Preview(schedule *domain.Schedule, overrides []domain.ScheduleOverride, from time.Time, n int) ([]Segment, error) {
	r, err := newRotation(schedule)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Segment{}, nil
	}
	if n > MaxPreviewShifts {
		n = MaxPreviewShifts
	}

	first := 0
	if !from.Before(r.start) {
		first = r.shiftAt(from)
	}

	segments := make([]Segment, 0, n)
	for k := first; k < first+n; k++ {
		segments = append(segments, r.splitShift(k, overrides)...)
	}
	return segments, nil
}

func (r *rotation) splitShift(k int, overrides []domain.ScheduleOverride) []Segment {
	start, end := r.boundary(k), r.boundary(k+1)

	cuts := []time.Time{start, end}
	for _, o := range overrides {
		if !o.StartTime.Before(end) || !o.EndTime.After(start) {
			continue
		}
		if o.StartTime.After(start) {
			cuts = append(cuts, o.StartTime)
		}
		if o.EndTime.Before(end) {
			cuts = append(cuts, o.EndTime)
		}
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })

	base := r.member(k)
	var out []Segment
	for i := 0; i+1 < len(cuts); i++ {
		a, b := cuts[i], cuts[i+1]
		if !a.Before(b) {
			continue
		}

		seg := Segment{UserID: base, ShiftIndex: k, Start: a, End: b}
		if o := pickOverride(overrides, a); o != nil {
			seg.UserID = o.UserID
			seg.OverrideID = o.ID
		}

		if last := len(out) - 1; last >= 0 && out[last].UserID == seg.UserID && out[last].OverrideID == seg.OverrideID {
			out[last].End = b
			continue
		}
		out = append(out, seg)
	}
	return out
}

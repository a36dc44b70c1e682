package play

import (
	"fmt"
	"time"

	"github.com/cueclub/table-service/internal/model"
)

// ElapsedMinutes sums the active play time over all segments in
// minutes. A segment without an end is still accruing and is counted
// up to now. Segments whose start lies after now (clock skew between
// writer and reader) contribute zero rather than a negative amount.
func ElapsedMinutes(segments []model.Segment, now time.Time) float64 {
	var total float64
	for _, seg := range segments {
		end := now
		if seg.EndedAt != nil {
			end = *seg.EndedAt
		}
		if d := end.Sub(seg.StartedAt); d > 0 {
			total += d.Minutes()
		}
	}
	return total
}

// CloseOpenSegment sets the end of the trailing open segment to now
// and reports whether a segment was closed. Calling it when no
// segment is open is a no-op, so pause racing end cannot double-close.
func CloseOpenSegment(segments []model.Segment, now time.Time) bool {
	if len(segments) == 0 {
		return false
	}
	last := &segments[len(segments)-1]
	if last.EndedAt != nil {
		return false
	}
	end := now
	last.EndedAt = &end
	return true
}

// OpenNewSegment appends a segment starting at now and returns the
// extended slice. It fails when the last segment is still open: a
// session may never accrue time through two segments at once.
func OpenNewSegment(segments []model.Segment, now time.Time) ([]model.Segment, error) {
	if n := len(segments); n > 0 && segments[n-1].EndedAt == nil {
		return segments, fmt.Errorf("%w: previous segment still open", ErrConflict)
	}
	return append(segments, model.Segment{Seq: len(segments), StartedAt: now}), nil
}

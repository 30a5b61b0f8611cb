package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, t BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == t {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Release(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if bms := bd.Check(WindowStats{WindowEndStep: 10, Pending: 100}); len(bms) != 0 {
		t.Errorf("expected no bookmarks before release, got %v", bms)
	}

	bms := bd.Check(WindowStats{WindowEndStep: 20, Released: 40, Active: 40, Pending: 60})
	if !hasBookmark(bms, BookmarkReleaseStarted) {
		t.Error("expected release_started bookmark")
	}
	if bms[0].Step != 20 {
		t.Errorf("bookmark step = %d, want 20", bms[0].Step)
	}

	bms = bd.Check(WindowStats{WindowEndStep: 30, Released: 60, Active: 100, ActiveMass: 1})
	if !hasBookmark(bms, BookmarkReleaseComplete) {
		t.Error("expected release_complete bookmark")
	}

	bms = bd.Check(WindowStats{WindowEndStep: 40, Active: 100, ActiveMass: 1})
	if hasBookmark(bms, BookmarkReleaseStarted) || hasBookmark(bms, BookmarkReleaseComplete) {
		t.Error("release bookmarks should fire once")
	}
}

func TestBookmarkDetector_BoundarySurge(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{WindowEndStep: int32(i * 10), Boundary: 5, Pending: 1})
	}

	bms := bd.Check(WindowStats{WindowEndStep: 40, Boundary: 20, Pending: 1})
	if !hasBookmark(bms, BookmarkBoundarySurge) {
		t.Error("expected boundary_surge bookmark")
	}

	bms = bd.Check(WindowStats{WindowEndStep: 50, Boundary: 9, Pending: 1})
	if hasBookmark(bms, BookmarkBoundarySurge) {
		t.Error("small counts should not trigger a surge")
	}
}

func TestBookmarkDetector_FloodPeak(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var fired []int
	for i, p90 := range []float64{0.1, 0.3, 0.2, 0.1, 0.05} {
		bms := bd.Check(WindowStats{WindowEndStep: int32(i), SpeedP90: p90, Active: 1, Pending: 1})
		if hasBookmark(bms, BookmarkFloodPeak) {
			fired = append(fired, i)
		}
	}
	if len(fired) != 1 || fired[0] != 3 {
		t.Errorf("flood_peak fired at windows %v, want [3]", fired)
	}
}

func TestBookmarkDetector_PlumeAtRest(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var fired []int
	for i := 0; i < 6; i++ {
		stats := WindowStats{WindowEndStep: int32(i), Active: 10}
		if i == 1 {
			stats.SpeedP90 = 0.5 // resets the count
		}
		if hasBookmark(bd.Check(stats), BookmarkPlumeAtRest) {
			fired = append(fired, i)
		}
	}
	if len(fired) != 1 || fired[0] != 4 {
		t.Errorf("plume_at_rest fired at windows %v, want [4]", fired)
	}
}

package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkReleaseStarted  BookmarkType = "release_started"
	BookmarkReleaseComplete BookmarkType = "release_complete"
	BookmarkBoundarySurge   BookmarkType = "boundary_surge"
	BookmarkFloodPeak       BookmarkType = "flood_peak"
	BookmarkPlumeAtRest     BookmarkType = "plume_at_rest"
)

// restSpeed is the p90 speed in m/s below which a window counts as at rest.
const restSpeed = 1e-4

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Step        int32        `csv:"step"`
	SimTimeSec  float64      `csv:"sim_time"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"step", b.Step,
		"sim_time", b.SimTimeSec,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments of a run from its stats windows.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	releaseStarted  bool
	releaseComplete bool
	peakP90         float64 // highest p90 speed seen so far
	peakReported    bool
	restWindows     int // consecutive windows at rest
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark
	add := func(b *Bookmark) {
		if b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	add(bd.checkRelease(stats))
	add(bd.checkBoundarySurge(stats))
	add(bd.checkFloodPeak(stats))
	add(bd.checkPlumeAtRest(stats))

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) bookmark(t BookmarkType, stats WindowStats, format string, args ...any) *Bookmark {
	return &Bookmark{
		Type:        t,
		Step:        stats.WindowEndStep,
		SimTimeSec:  stats.SimTimeSec,
		Description: fmt.Sprintf(format, args...),
	}
}

// checkRelease reports the first released particle, and later the window the
// last pending particle left the queue. Only one fires per window.
func (bd *BookmarkDetector) checkRelease(stats WindowStats) *Bookmark {
	if !bd.releaseStarted {
		if stats.Released == 0 {
			return nil
		}
		bd.releaseStarted = true
		return bd.bookmark(BookmarkReleaseStarted, stats, "%d particles released", stats.Released)
	}
	if !bd.releaseComplete && stats.Pending == 0 {
		bd.releaseComplete = true
		return bd.bookmark(BookmarkReleaseComplete, stats, "all %d particles released, mass %.4g", stats.Active, stats.ActiveMass)
	}
	return nil
}

// checkBoundarySurge fires when boundary hits exceed twice the rolling average.
func (bd *BookmarkDetector) checkBoundarySurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.Boundary < 10 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Boundary
	}
	avg := float64(total) / float64(len(history))

	if float64(stats.Boundary) > avg*2.0 {
		return bd.bookmark(BookmarkBoundarySurge, stats, "%d boundary hits, average %.1f", stats.Boundary, avg)
	}
	return nil
}

// checkFloodPeak fires once, on the first window whose p90 speed drops below
// half of the highest seen.
func (bd *BookmarkDetector) checkFloodPeak(stats WindowStats) *Bookmark {
	if stats.SpeedP90 > bd.peakP90 {
		bd.peakP90 = stats.SpeedP90
		return nil
	}
	if bd.peakReported || bd.peakP90 <= restSpeed || stats.SpeedP90 > bd.peakP90*0.5 {
		return nil
	}
	bd.peakReported = true
	return bd.bookmark(BookmarkFloodPeak, stats, "p90 speed %.3g m/s receded from peak %.3g m/s", stats.SpeedP90, bd.peakP90)
}

// checkPlumeAtRest fires once after three consecutive windows with a released
// cloud that no longer moves.
func (bd *BookmarkDetector) checkPlumeAtRest(stats WindowStats) *Bookmark {
	if stats.Active == 0 || stats.Pending > 0 || stats.SpeedP90 > restSpeed {
		bd.restWindows = 0
		return nil
	}
	bd.restWindows++
	if bd.restWindows == 3 { // trigger exactly once
		return bd.bookmark(BookmarkPlumeAtRest, stats, "%d particles at rest", stats.Active)
	}
	return nil
}

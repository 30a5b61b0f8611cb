package telemetry

import (
	"encoding/json"
	"math"
	"testing"

	geojson "github.com/paulmach/go.geojson"

	"github.com/rsaemann/GULLI-sub003/release"
)

func TestReleaseHistogram(t *testing.T) {
	times := []float64{100, 101, 109.9, 110, 150, 199, 200, 250, 99}
	got := ReleaseHistogram(times, 100, 100, 4)

	// 250 and 99 fall outside, 200 lands in the last bin.
	want := []float64{4, 0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bin %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReleaseHistogramInstant(t *testing.T) {
	got := ReleaseHistogram([]float64{5, 5, 5}, 5, 0, 3)
	if got[0] != 3 {
		t.Errorf("instant release histogram = %v, want all in first bin", got)
	}
}

func TestMassProfileMatchesSchedule(t *testing.T) {
	s := release.NewScheduler(0)
	ps := s.Release(&release.Injection{
		Name: "ramp", Mass: 100, Particles: 1000,
		Start: 0, Duration: 100, StartIntensity: 0, EndIntensity: 2,
	})

	profile := MassProfile(ps, 0, 100, 10)

	var total float64
	for _, m := range profile {
		total += m
	}
	if math.Abs(total-100) > 1e-9 {
		t.Errorf("profile mass = %v, want 100", total)
	}
	// Rising intensity: later bins carry more mass.
	if profile[9] <= profile[0] {
		t.Errorf("expected rising profile, got %v", profile)
	}
}

func TestReleaseRecords(t *testing.T) {
	inj := &release.Injection{Name: "spill"}
	rows := ReleaseRecords([]release.Particle{
		{Seq: 3, Mass: 0.5, ReleaseTime: 12, Trace: true, Injection: inj},
		{Seq: 4, Mass: 0.5, ReleaseTime: 13},
	})

	if rows[0].Injection != "spill" || !rows[0].Trace || rows[0].ReleaseTime != 12 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Injection != "" {
		t.Errorf("row 1 injection = %q, want empty", rows[1].Injection)
	}
}

func TestSnapshotCollection(t *testing.T) {
	fc := SnapshotCollection(7, 420, []ParticleState{
		{Seq: 1, Injection: "a", Cell: 3, X: 1, Y: 2, Mass: 0.1},
		{Seq: 2, Injection: "a", Cell: 4, X: 3, Y: 4, Mass: 0.1, Trail: [][2]float64{{0, 0}, {1, 1}, {3, 4}}},
		{Seq: 3, Injection: "b", Cell: 5, X: 5, Y: 6, Mass: 0.2, Trail: [][2]float64{{5, 6}}},
	})

	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	back, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("UnmarshalFeatureCollection: %v", err)
	}

	// Three points plus one trail; single-point trails are skipped.
	if len(back.Features) != 4 {
		t.Fatalf("features = %d, want 4", len(back.Features))
	}
	var points, lines int
	for _, f := range back.Features {
		switch {
		case f.Geometry.IsPoint():
			points++
		case f.Geometry.IsLineString():
			lines++
			if len(f.Geometry.LineString) != 3 {
				t.Errorf("trail length = %d, want 3", len(f.Geometry.LineString))
			}
			if kind, _ := f.PropertyString("kind"); kind != "trail" {
				t.Errorf("trail kind = %q", kind)
			}
		}
	}
	if points != 3 || lines != 1 {
		t.Errorf("points = %d, lines = %d", points, lines)
	}

	first := back.Features[0]
	if step, _ := first.PropertyInt("step"); step != 7 {
		t.Errorf("step property = %v", step)
	}
	if !json.Valid(data) {
		t.Error("snapshot is not valid JSON")
	}
}

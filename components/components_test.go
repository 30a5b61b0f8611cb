package components

import "testing"

func TestTrailPush(t *testing.T) {
	tr := Trail{Max: 3}
	for i := 0; i < 5; i++ {
		tr.Push(float64(i), float64(-i))
	}

	if len(tr.Points) != 3 {
		t.Fatalf("len = %d, want 3", len(tr.Points))
	}
	for i, want := range []float64{2, 3, 4} {
		if tr.Points[i][0] != want || tr.Points[i][1] != -want {
			t.Errorf("point %d = %v, want (%v,%v)", i, tr.Points[i], want, -want)
		}
	}
}

func TestTrailDisabled(t *testing.T) {
	var tr Trail
	tr.Push(1, 1)
	if len(tr.Points) != 0 {
		t.Errorf("zero Max kept %d points", len(tr.Points))
	}
}

package duration_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"pipcast/internal/duration"
	"pipcast/internal/services"
)

type fakeProber map[string]struct {
	seconds float64
	err     error
}

func (f fakeProber) Probe(_ context.Context, path string) (float64, error) {
	r, ok := f[path]
	if !ok {
		return 0, errors.New("no such file")
	}
	return r.seconds, r.err
}

func TestReconcileTakesMinimum(t *testing.T) {
	prober := fakeProber{
		"screen": {seconds: 90},
		"face":   {seconds: 75},
	}
	rec, err := duration.NewReconciler(prober).Reconcile(context.Background(), "screen", "face")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Seconds != 75 {
		t.Fatalf("Seconds = %v, want 75", rec.Seconds)
	}
	for _, o := range rec.Outcomes {
		if o.Kind != duration.Probed {
			t.Fatalf("expected probed outcome, got %+v", o)
		}
	}
}

func TestReconcileProbeFailureUsesFallback(t *testing.T) {
	prober := fakeProber{
		"screen": {err: errors.New("moov atom not found")},
		"face":   {seconds: 40},
	}
	rec, err := duration.NewReconciler(prober).Reconcile(context.Background(), "screen", "face")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Seconds != 40 {
		t.Fatalf("Seconds = %v, want 40", rec.Seconds)
	}
	screen := rec.Outcomes[0]
	if screen.Kind != duration.Fallback || screen.Seconds != duration.DefaultFallbackSeconds {
		t.Fatalf("unexpected screen outcome: %+v", screen)
	}
	if !errors.Is(screen.Err, services.ErrProbe) {
		t.Fatalf("expected probe error marker, got %v", screen.Err)
	}
	if rec.AllFallback() {
		t.Fatal("face was probed")
	}
}

func TestReconcileAllProbesFail(t *testing.T) {
	rec, err := duration.NewReconciler(fakeProber{}).Reconcile(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Seconds != duration.DefaultFallbackSeconds {
		t.Fatalf("Seconds = %v, want fallback", rec.Seconds)
	}
	if !rec.AllFallback() {
		t.Fatal("expected all outcomes to be fallback")
	}
}

func TestReconcileRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
	}{
		{"zero", 0},
		{"negative", -3},
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prober := fakeProber{"x": {seconds: tc.seconds}, "y": {seconds: 500}}
			rec, err := duration.NewReconciler(prober).Reconcile(context.Background(), "x", "y")
			if err != nil {
				t.Fatal(err)
			}
			if rec.Outcomes[0].Kind != duration.Fallback {
				t.Fatalf("expected fallback for %v", tc.seconds)
			}
			if rec.Seconds != duration.DefaultFallbackSeconds {
				t.Fatalf("Seconds = %v, want %v", rec.Seconds, duration.DefaultFallbackSeconds)
			}
		})
	}
}

func TestReconcileCeiling(t *testing.T) {
	prober := fakeProber{"a": {seconds: 7200}, "b": {seconds: 5000}}
	rec, err := duration.NewReconciler(prober).Reconcile(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Seconds != duration.DefaultCeilingSeconds {
		t.Fatalf("Seconds = %v, want ceiling", rec.Seconds)
	}
}

func TestReconcileProperty(t *testing.T) {
	values := []float64{0.5, 1, 40, 59.9, 75, 90, 3599, 3600, 3601, 86400}
	for _, screen := range values {
		for _, face := range values {
			prober := fakeProber{"s": {seconds: screen}, "f": {seconds: face}}
			rec, err := duration.NewReconciler(prober).Reconcile(context.Background(), "s", "f")
			if err != nil {
				t.Fatal(err)
			}
			want := math.Min(math.Min(screen, face), 3600)
			if rec.Seconds != want || rec.Seconds <= 0 {
				t.Fatalf("screen=%v face=%v: got %v want %v", screen, face, rec.Seconds, want)
			}
		}
	}
}

func TestReconcileOptions(t *testing.T) {
	prober := fakeProber{"a": {err: errors.New("boom")}, "b": {seconds: 100}}
	rec, err := duration.NewReconciler(prober, duration.WithFallback(30), duration.WithCeiling(20)).
		Reconcile(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Seconds != 20 {
		t.Fatalf("Seconds = %v, want 20", rec.Seconds)
	}
	if rec.Outcomes[0].Seconds != 30 {
		t.Fatalf("fallback = %v, want 30", rec.Outcomes[0].Seconds)
	}
}

func TestReconcileCeilingCannotBeRaised(t *testing.T) {
	prober := fakeProber{"a": {seconds: 5000}, "b": {seconds: 7000}}
	rec, err := duration.NewReconciler(prober, duration.WithCeiling(7200)).
		Reconcile(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Seconds != duration.DefaultCeilingSeconds {
		t.Fatalf("Seconds = %v, want %v", rec.Seconds, duration.DefaultCeilingSeconds)
	}
}

func TestReconcileRequiresInputs(t *testing.T) {
	_, err := duration.NewReconciler(fakeProber{}).Reconcile(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNilProberFallsBack(t *testing.T) {
	out := duration.NewReconciler(nil).Probe(context.Background(), "x")
	if out.Kind != duration.Fallback || !errors.Is(out.Err, duration.ErrNoProber) {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

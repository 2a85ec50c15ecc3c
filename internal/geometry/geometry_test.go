package geometry_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"pipcast/internal/geometry"
)

func TestCatalogValidates(t *testing.T) {
	for _, p := range geometry.All() {
		if err := p.Validate(); err != nil {
			t.Errorf("profile %s: %v", p.Name, err)
		}
	}
}

func TestCatalogCanvasSizes(t *testing.T) {
	tests := []struct {
		name geometry.Name
		w, h int
	}{
		{geometry.ShortForm, 1080, 1920},
		{geometry.LongForm, 1920, 1080},
	}
	for _, tc := range tests {
		p, err := geometry.Lookup(tc.name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tc.name, err)
		}
		if p.CanvasWidth != tc.w || p.CanvasHeight != tc.h {
			t.Errorf("%s canvas = %dx%d, want %dx%d", tc.name, p.CanvasWidth, p.CanvasHeight, tc.w, tc.h)
		}
	}
}

func TestLayersSortedByZ(t *testing.T) {
	for _, p := range geometry.All() {
		for i := 1; i < len(p.Layers); i++ {
			if p.Layers[i-1].Z >= p.Layers[i].Z {
				t.Fatalf("profile %s layers out of order: %+v", p.Name, p.Layers)
			}
		}
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	p, err := geometry.Lookup(geometry.ShortForm)
	if err != nil {
		t.Fatal(err)
	}
	p.Layers[0].Width = 2
	again, _ := geometry.Lookup(geometry.ShortForm)
	if again.Layers[0].Width == 2 {
		t.Fatal("catalog mutated through a returned profile")
	}
}

func TestLookupCopiesShadowAndBorder(t *testing.T) {
	for _, p := range geometry.All() {
		for i := range p.Layers {
			if p.Layers[i].Shadow != nil {
				p.Layers[i].Shadow.Opacity = 0
			}
			if p.Layers[i].Border != nil {
				p.Layers[i].Border.Width = 0
			}
		}
	}
	long, err := geometry.Lookup(geometry.LongForm)
	if err != nil {
		t.Fatal(err)
	}
	var shadows, borders int
	for _, l := range long.Layers {
		if l.Shadow != nil {
			shadows++
			if l.Shadow.Opacity == 0 {
				t.Fatalf("%s shadow mutated through All()", l.Role)
			}
		}
		if l.Border != nil {
			borders++
			if l.Border.Width == 0 {
				t.Fatalf("%s border mutated through All()", l.Role)
			}
		}
	}
	if shadows == 0 || borders == 0 {
		t.Fatalf("long form should carry shadows and a border, got %d/%d", shadows, borders)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := geometry.Lookup("square"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestMaskKeys(t *testing.T) {
	short, _ := geometry.Lookup(geometry.ShortForm)
	want := []geometry.MaskKey{
		{Width: 1016, Height: 802, RadiusTop: 116},
		{Width: 1080, Height: 670, RadiusTop: 54, RadiusBottom: 54},
		{Width: 1080, Height: 940, RadiusTop: 116},
	}
	if diff := cmp.Diff(want, short.MaskKeys()); diff != "" {
		t.Fatalf("short form mask keys mismatch (-want +got):\n%s", diff)
	}

	long, _ := geometry.Lookup(geometry.LongForm)
	want = []geometry.MaskKey{{Width: 364, Height: 206, RadiusTop: 8, RadiusBottom: 8}}
	if diff := cmp.Diff(want, long.MaskKeys()); diff != "" {
		t.Fatalf("long form mask keys mismatch (-want +got):\n%s", diff)
	}
}

func TestPictureInPictureOffsets(t *testing.T) {
	long, _ := geometry.Lookup(geometry.LongForm)
	face, ok := long.Layer(geometry.RoleFace)
	if !ok {
		t.Fatal("missing face layer")
	}
	if x, y := face.Placement(); x != 1530 || y != 846 {
		t.Fatalf("placement = (%d,%d), want (1530,846)", x, y)
	}
	if x, y := face.ShadowOffset(); x != 1528 || y != 844 {
		t.Fatalf("shadow offset = (%d,%d), want (1528,844)", x, y)
	}

	short, _ := geometry.Lookup(geometry.ShortForm)
	screen, _ := short.Layer(geometry.RoleScreen)
	if x, y := screen.ShadowOffset(); x != 0 || y != 211 {
		t.Fatalf("screen shadow offset = (%d,%d), want (0,211)", x, y)
	}
}

func TestValidateRejectsOddAndOversizedLayers(t *testing.T) {
	base, _ := geometry.Lookup(geometry.LongForm)

	odd := base
	odd.Layers = append([]geometry.LayerSpec(nil), base.Layers...)
	odd.Layers[2].Width = 365
	if err := odd.Validate(); err == nil {
		t.Fatal("expected odd width to be rejected")
	}

	radius := base
	radius.Layers = append([]geometry.LayerSpec(nil), base.Layers...)
	radius.Layers[2].RadiusTop = 200
	if err := radius.Validate(); err == nil {
		t.Fatal("expected oversized radius to be rejected")
	}

	outside := base
	outside.Layers = append([]geometry.LayerSpec(nil), base.Layers...)
	outside.Layers[2].X = 1700
	if err := outside.Validate(); err == nil {
		t.Fatal("expected layer outside the canvas to be rejected")
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in      string
		want    []geometry.Name
		wantErr bool
	}{
		{"", []geometry.Name{geometry.ShortForm, geometry.LongForm}, false},
		{"both", []geometry.Name{geometry.ShortForm, geometry.LongForm}, false},
		{"short", []geometry.Name{geometry.ShortForm}, false},
		{"LONG", []geometry.Name{geometry.LongForm}, false},
		{"long_form,short_form", []geometry.Name{geometry.ShortForm, geometry.LongForm}, false},
		{"short,short", []geometry.Name{geometry.ShortForm}, false},
		{"square", nil, true},
		{",", nil, true},
	}
	for _, tc := range tests {
		got, err := geometry.ParseSelection(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSelection(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSelection(%q): %v", tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseSelection(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestMaskKeyValidate(t *testing.T) {
	if err := (geometry.MaskKey{Width: 10, Height: 10, RadiusTop: 5, RadiusBottom: 5}).Validate(); err != nil {
		t.Fatalf("radius at half of min side should be valid: %v", err)
	}
	if err := (geometry.MaskKey{Width: 10, Height: 10, RadiusTop: 6}).Validate(); err == nil {
		t.Fatal("expected radius above half of min side to fail")
	}
	if err := (geometry.MaskKey{Width: 0, Height: 10}).Validate(); err == nil {
		t.Fatal("expected zero width to fail")
	}
}

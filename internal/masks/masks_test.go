package masks_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pipcast/internal/geometry"
	"pipcast/internal/logging"
	"pipcast/internal/masks"
	"pipcast/internal/services"
)

func TestFileName(t *testing.T) {
	got := masks.FileName(masks.Key{Width: 1080, Height: 670, RadiusTop: 54, RadiusBottom: 54})
	if got != "mask_1080x670_t54_b54.png" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		key  masks.Key
		want masks.Shape
	}{
		{masks.Key{Width: 10, Height: 10}, masks.ShapeRect},
		{masks.Key{Width: 10, Height: 10, RadiusTop: 3, RadiusBottom: 3}, masks.ShapeUniform},
		{masks.Key{Width: 10, Height: 10, RadiusTop: 3}, masks.ShapeTopOnly},
		{masks.Key{Width: 10, Height: 10, RadiusTop: 3, RadiusBottom: 1}, masks.ShapeMixed},
		{masks.Key{Width: 10, Height: 10, RadiusBottom: 2}, masks.ShapeMixed},
	}
	for _, tc := range tests {
		if got := masks.ShapeOf(tc.key); got != tc.want {
			t.Errorf("ShapeOf(%v) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func alphaAt(img *image.NRGBA, x, y int) uint8 {
	return img.NRGBAAt(x, y).A
}

func TestRasterizeCorners(t *testing.T) {
	tests := []struct {
		name              string
		key               masks.Key
		topCornerOpaque   bool
		bottomCornerOpaue bool
	}{
		{"rect", masks.Key{Width: 64, Height: 40}, true, true},
		{"uniform", masks.Key{Width: 64, Height: 40, RadiusTop: 12, RadiusBottom: 12}, false, false},
		{"top only", masks.Key{Width: 64, Height: 40, RadiusTop: 12}, false, true},
		{"mixed", masks.Key{Width: 64, Height: 40, RadiusTop: 4, RadiusBottom: 16}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := masks.Rasterize(tc.key)
			if err != nil {
				t.Fatalf("Rasterize: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tc.key.Width || b.Dy() != tc.key.Height {
				t.Fatalf("bounds = %v", b)
			}
			if a := alphaAt(img, tc.key.Width/2, tc.key.Height/2); a != 0xff {
				t.Fatalf("center alpha = %d, want opaque", a)
			}
			if c := img.NRGBAAt(tc.key.Width/2, tc.key.Height/2); c.R != 0xff || c.G != 0xff || c.B != 0xff {
				t.Fatalf("center color = %v, want white", c)
			}
			top := alphaAt(img, 0, 0)
			bottom := alphaAt(img, tc.key.Width-1, tc.key.Height-1)
			if (top == 0xff) != tc.topCornerOpaque {
				t.Fatalf("top-left alpha = %d, opaque expected %v", top, tc.topCornerOpaque)
			}
			if (bottom == 0xff) != tc.bottomCornerOpaue {
				t.Fatalf("bottom-right alpha = %d, opaque expected %v", bottom, tc.bottomCornerOpaue)
			}
			if !tc.topCornerOpaque && top != 0 {
				t.Fatalf("rounded corner should be fully transparent, got %d", top)
			}
		})
	}
}

func TestRasterizeDeterministic(t *testing.T) {
	key := masks.Key{Width: 364, Height: 206, RadiusTop: 8, RadiusBottom: 8}
	a, err := masks.Rasterize(key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := masks.Rasterize(key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("rasterization is not deterministic")
	}
}

func TestRasterizeRejectsInvalidKey(t *testing.T) {
	if _, err := masks.Rasterize(masks.Key{Width: 10, Height: 10, RadiusTop: 8}); err == nil {
		t.Fatal("expected error for radius above half the short side")
	}
}

func readPixels(t *testing.T, path string) []byte {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			out = append(out, byte(a>>8))
		}
	}
	return out
}

func TestEnsureIdempotent(t *testing.T) {
	dir := t.TempDir()
	reg := masks.NewRegistry(dir, logging.NewNop())
	key := masks.Key{Width: 120, Height: 80, RadiusTop: 20, RadiusBottom: 6}

	first, err := reg.Ensure(context.Background(), key)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if first.Path != filepath.Join(dir, masks.FileName(key)) {
		t.Fatalf("unexpected path %q", first.Path)
	}
	before := readPixels(t, first.Path)

	second, err := reg.Ensure(context.Background(), key)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if second != first {
		t.Fatalf("assets differ: %+v vs %+v", first, second)
	}
	if !bytes.Equal(before, readPixels(t, second.Path)) {
		t.Fatal("alpha content changed between calls")
	}

	// A fresh registry over the same directory reuses the published file.
	other := masks.NewRegistry(dir, logging.NewNop())
	third, err := other.Ensure(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, readPixels(t, third.Path)) {
		t.Fatal("alpha content differs across registries")
	}
}

func TestEnsureConcurrentFirstUse(t *testing.T) {
	dir := t.TempDir()
	key := masks.Key{Width: 200, Height: 100, RadiusTop: 30, RadiusBottom: 30}
	// Two registries emulate two processes sharing the cache.
	regs := []*masks.Registry{
		masks.NewRegistry(dir, logging.NewNop()),
		masks.NewRegistry(dir, logging.NewNop()),
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func(reg *masks.Registry) {
			defer wg.Done()
			asset, err := reg.Ensure(context.Background(), key)
			if err != nil {
				errs <- err
				return
			}
			if _, err := os.Stat(asset.Path); err != nil {
				errs <- err
			}
		}(regs[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Ensure: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".png" && filepath.Ext(e.Name()) != ".lock" {
			t.Fatalf("unexpected leftover file %s", e.Name())
		}
	}
	want, _ := masks.Rasterize(key)
	got := readPixels(t, regs[0].Path(key))
	for i := range got {
		if got[i] != want.Pix[i*4+3] {
			t.Fatalf("published mask differs from rasterized alpha at %d", i)
		}
	}
}

func TestEnsureInvalidKeyIsMaskError(t *testing.T) {
	reg := masks.NewRegistry(t.TempDir(), logging.NewNop())
	_, err := reg.Ensure(context.Background(), masks.Key{Width: 10, Height: 10, RadiusBottom: 9})
	if !errors.Is(err, services.ErrMask) {
		t.Fatalf("expected mask error, got %v", err)
	}
}

func TestEnsureProfile(t *testing.T) {
	reg := masks.NewRegistry(t.TempDir(), logging.NewNop())
	profile, err := geometry.Lookup(geometry.ShortForm)
	if err != nil {
		t.Fatal(err)
	}
	assets, err := reg.EnsureProfile(context.Background(), profile)
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if len(assets) != len(profile.MaskKeys()) {
		t.Fatalf("got %d assets, want %d", len(assets), len(profile.MaskKeys()))
	}
	for _, a := range assets {
		if _, err := os.Stat(a.Path); err != nil {
			t.Fatalf("asset %s missing: %v", a.Path, err)
		}
	}
}

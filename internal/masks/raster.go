package masks

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"pipcast/internal/geometry"
)

// Key identifies a mask.
type Key = geometry.MaskKey

// Shape classifies the outline drawn for a key.
type Shape int

const (
	// ShapeRect has no rounding.
	ShapeRect Shape = iota
	// ShapeUniform rounds all four corners with one radius.
	ShapeUniform
	// ShapeTopOnly rounds the top corners and leaves the bottom square.
	ShapeTopOnly
	// ShapeMixed rounds top and bottom corners with different radii.
	ShapeMixed
)

func (s Shape) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeUniform:
		return "uniform"
	case ShapeTopOnly:
		return "top-only"
	default:
		return "mixed"
	}
}

// ShapeOf reports which outline Rasterize draws for key.
func ShapeOf(key Key) Shape {
	switch {
	case key.RadiusTop == 0 && key.RadiusBottom == 0:
		return ShapeRect
	case key.RadiusTop == key.RadiusBottom:
		return ShapeUniform
	case key.RadiusBottom == 0:
		return ShapeTopOnly
	default:
		return ShapeMixed
	}
}

// kappa places cubic control points so a Bézier approximates a quarter circle.
const kappa = 0.5522847498

// Rasterize draws the mask for key: opaque white inside the outline, fully
// transparent outside. Output is deterministic for a given key.
func Rasterize(key Key) (*image.NRGBA, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	w, h := float32(key.Width), float32(key.Height)
	z := vector.NewRasterizer(key.Width, key.Height)

	switch ShapeOf(key) {
	case ShapeRect:
		z.MoveTo(0, 0)
		z.LineTo(w, 0)
		z.LineTo(w, h)
		z.LineTo(0, h)
		z.ClosePath()
	case ShapeUniform:
		r := float32(key.RadiusTop)
		roundedPath(z, w, h, r, r)
	case ShapeTopOnly:
		roundedPath(z, w, h, float32(key.RadiusTop), 0)
	default:
		roundedPath(z, w, h, float32(key.RadiusTop), float32(key.RadiusBottom))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, key.Width, key.Height))
	z.DrawOp = draw.Src
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}), image.Point{})
	return dst, nil
}

// roundedPath traces the outline clockwise from the top edge: top edge, the
// top-right arc, right edge, bottom-right arc, bottom edge, bottom-left arc,
// left edge, top-left arc.
func roundedPath(z *vector.Rasterizer, w, h, rt, rb float32) {
	kt, kb := rt*kappa, rb*kappa

	z.MoveTo(rt, 0)
	z.LineTo(w-rt, 0)
	if rt > 0 {
		z.CubeTo(w-rt+kt, 0, w, rt-kt, w, rt)
	}
	z.LineTo(w, h-rb)
	if rb > 0 {
		z.CubeTo(w, h-rb+kb, w-rb+kb, h, w-rb, h)
	}
	z.LineTo(rb, h)
	if rb > 0 {
		z.CubeTo(rb-kb, h, 0, h-rb+kb, 0, h-rb)
	}
	z.LineTo(0, rt)
	if rt > 0 {
		z.CubeTo(0, rt-kt, rt-kt, 0, rt, 0)
	}
	z.ClosePath()
}

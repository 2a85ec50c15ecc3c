package geometry

import (
	"fmt"
	"slices"
	"strings"
)

// Name identifies an output profile.
type Name string

const (
	ShortForm Name = "short_form"
	LongForm  Name = "long_form"
)

// Role is the content a layer carries.
type Role string

const (
	RoleScreen          Role = "screen"
	RoleFace            Role = "face"
	RoleBackgroundImage Role = "background-image"
	RoleShadow          Role = "shadow"
	RoleBorder          Role = "border"
)

// Shadow describes a blurred, translucent ghost drawn beneath a layer.
type Shadow struct {
	Opacity    float64
	BlurRadius int
}

// Border pads a layer with an opaque frame before it is placed. Width is
// the frame thickness on each side.
type Border struct {
	Width int
	Color string
}

// LayerSpec places one layer on the canvas. X and Y are the offsets of the
// layer content; a border grows outward from there.
type LayerSpec struct {
	Role         Role
	Width        int
	Height       int
	X            int
	Y            int
	RadiusTop    int
	RadiusBottom int
	Opacity      float64
	Z            int
	Shadow       *Shadow
	Border       *Border
	// Backdrop is the color painted behind the layer content inside its own
	// box. Empty means the layer is drawn directly.
	Backdrop string
	// Host names the layer whose backdrop this layer is blended into. Hosted
	// layers never touch the canvas directly.
	Host Role
}

// Rounded reports whether the layer needs an alpha mask.
func (l LayerSpec) Rounded() bool {
	return l.RadiusTop > 0 || l.RadiusBottom > 0
}

// Placement is the canvas offset of the layer including its border.
func (l LayerSpec) Placement() (int, int) {
	bw := l.BorderWidth()
	return l.X - bw, l.Y - bw
}

// ShadowOffset is where the shadow ghost is placed: the placement offset
// moved up and left by the border inset.
func (l LayerSpec) ShadowOffset() (int, int) {
	x, y := l.Placement()
	bw := l.BorderWidth()
	return x - bw, y - bw
}

// MaskKey identifies the rounded-rectangle mask matching the layer box.
func (l LayerSpec) MaskKey() MaskKey {
	return MaskKey{Width: l.Width, Height: l.Height, RadiusTop: l.RadiusTop, RadiusBottom: l.RadiusBottom}
}

// BorderWidth returns the frame width, zero when the layer has none.
func (l LayerSpec) BorderWidth() int {
	if l.Border == nil {
		return 0
	}
	return l.Border.Width
}

// MaskKey is the cache key for a rounded-rectangle alpha mask.
type MaskKey struct {
	Width        int
	Height       int
	RadiusTop    int
	RadiusBottom int
}

func (k MaskKey) String() string {
	return fmt.Sprintf("%dx%d/t%d/b%d", k.Width, k.Height, k.RadiusTop, k.RadiusBottom)
}

// Validate checks the mask dimensions.
func (k MaskKey) Validate() error {
	if k.Width <= 0 || k.Height <= 0 {
		return fmt.Errorf("mask %s: dimensions must be positive", k)
	}
	limit := min(k.Width, k.Height) / 2
	if k.RadiusTop < 0 || k.RadiusBottom < 0 || k.RadiusTop > limit || k.RadiusBottom > limit {
		return fmt.Errorf("mask %s: radii must be between 0 and %d", k, limit)
	}
	return nil
}

// Profile is a named output geometry.
type Profile struct {
	Name         Name
	Label        string
	CanvasWidth  int
	CanvasHeight int
	// Layers are sorted by ascending Z.
	Layers []LayerSpec
}

// Layer returns the layer carrying role.
func (p Profile) Layer(role Role) (LayerSpec, bool) {
	for _, layer := range p.Layers {
		if layer.Role == role {
			return layer, true
		}
	}
	return LayerSpec{}, false
}

// MaskKeys lists the distinct masks the profile needs, in layer order.
func (p Profile) MaskKeys() []MaskKey {
	var keys []MaskKey
	for _, layer := range p.Layers {
		if !layer.Rounded() {
			continue
		}
		key := layer.MaskKey()
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Validate enforces the codec and layout invariants on every layer.
func (p Profile) Validate() error {
	if p.CanvasWidth <= 0 || p.CanvasHeight <= 0 || p.CanvasWidth%2 != 0 || p.CanvasHeight%2 != 0 {
		return fmt.Errorf("profile %s: canvas %dx%d must be positive and even", p.Name, p.CanvasWidth, p.CanvasHeight)
	}
	seenZ := map[int]Role{}
	for i, layer := range p.Layers {
		if layer.Width <= 0 || layer.Height <= 0 || layer.Width%2 != 0 || layer.Height%2 != 0 {
			return fmt.Errorf("profile %s: layer %s size %dx%d must be positive and even", p.Name, layer.Role, layer.Width, layer.Height)
		}
		if err := layer.MaskKey().Validate(); err != nil {
			return fmt.Errorf("profile %s: layer %s: %w", p.Name, layer.Role, err)
		}
		border := layer.BorderWidth()
		if layer.X-border < 0 || layer.Y-border < 0 ||
			layer.X+layer.Width+border > p.CanvasWidth || layer.Y+layer.Height+border > p.CanvasHeight {
			return fmt.Errorf("profile %s: layer %s exceeds the canvas", p.Name, layer.Role)
		}
		if layer.Opacity <= 0 || layer.Opacity > 1 {
			return fmt.Errorf("profile %s: layer %s opacity %v out of range", p.Name, layer.Role, layer.Opacity)
		}
		if other, ok := seenZ[layer.Z]; ok {
			return fmt.Errorf("profile %s: layers %s and %s share z=%d", p.Name, other, layer.Role, layer.Z)
		}
		seenZ[layer.Z] = layer.Role
		if i > 0 && p.Layers[i-1].Z > layer.Z {
			return fmt.Errorf("profile %s: layers are not sorted by z", p.Name)
		}
		if layer.Shadow != nil && (layer.Shadow.Opacity <= 0 || layer.Shadow.Opacity > 1 || layer.Shadow.BlurRadius < 0) {
			return fmt.Errorf("profile %s: layer %s has an invalid shadow", p.Name, layer.Role)
		}
		if layer.Border != nil && (layer.Border.Width <= 0 || layer.Border.Color == "") {
			return fmt.Errorf("profile %s: layer %s has an invalid border", p.Name, layer.Role)
		}
		if sx, sy := layer.ShadowOffset(); layer.Shadow != nil && (sx < 0 || sy < 0) {
			return fmt.Errorf("profile %s: layer %s shadow starts outside the canvas", p.Name, layer.Role)
		}
		if layer.Host != "" {
			host, ok := p.Layer(layer.Host)
			if !ok || host.Backdrop == "" {
				return fmt.Errorf("profile %s: layer %s is hosted by %s which has no backdrop", p.Name, layer.Role, layer.Host)
			}
			if host.Width != layer.Width || host.Height != layer.Height || host.X != layer.X || host.Y != layer.Y {
				return fmt.Errorf("profile %s: layer %s must share the box of its host %s", p.Name, layer.Role, layer.Host)
			}
			if layer.Rounded() {
				return fmt.Errorf("profile %s: hosted layer %s takes its host's mask", p.Name, layer.Role)
			}
		}
	}
	for _, role := range []Role{RoleScreen, RoleFace} {
		if _, ok := p.Layer(role); !ok {
			return fmt.Errorf("profile %s: missing %s layer", p.Name, role)
		}
	}
	return nil
}

var catalog = []Profile{
	{
		Name:         ShortForm,
		Label:        "short form (vertical)",
		CanvasWidth:  1080,
		CanvasHeight: 1920,
		Layers: []LayerSpec{
			{Role: RoleBackgroundImage, Width: 1016, Height: 802, X: 32, Y: 1118, RadiusTop: 116, Opacity: 1, Z: 0},
			{Role: RoleScreen, Width: 1080, Height: 670, X: 0, Y: 211, RadiusTop: 54, RadiusBottom: 54, Opacity: 1, Z: 1,
				Shadow: &Shadow{Opacity: 0.5, BlurRadius: 10}},
			{Role: RoleFace, Width: 1080, Height: 940, X: 0, Y: 980, RadiusTop: 116, Opacity: 1, Z: 2},
		},
	},
	{
		Name:         LongForm,
		Label:        "long form (horizontal)",
		CanvasWidth:  1920,
		CanvasHeight: 1080,
		Layers: []LayerSpec{
			{Role: RoleBackgroundImage, Width: 364, Height: 206, X: 1532, Y: 848, Opacity: 0.5, Z: 0, Host: RoleFace},
			{Role: RoleScreen, Width: 1920, Height: 1080, X: 0, Y: 0, Opacity: 1, Z: 1,
				Shadow: &Shadow{Opacity: 0.5, BlurRadius: 10}},
			{Role: RoleFace, Width: 364, Height: 206, X: 1532, Y: 848, RadiusTop: 8, RadiusBottom: 8, Opacity: 1, Z: 2,
				Shadow:   &Shadow{Opacity: 0.7, BlurRadius: 15},
				Border:   &Border{Width: 2, Color: "white"},
				Backdrop: "black"},
		},
	},
}

func init() {
	for i := range catalog {
		slices.SortStableFunc(catalog[i].Layers, func(a, b LayerSpec) int { return a.Z - b.Z })
	}
}

// All returns every profile in catalog order. The returned slice is a copy.
func All() []Profile {
	out := make([]Profile, len(catalog))
	for i, p := range catalog {
		out[i] = clone(p)
	}
	return out
}

// Names lists the profile names in catalog order.
func Names() []Name {
	names := make([]Name, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the profile registered under name.
func Lookup(name Name) (Profile, error) {
	for _, p := range catalog {
		if p.Name == name {
			return clone(p), nil
		}
	}
	return Profile{}, fmt.Errorf("unknown profile %q", name)
}

// ParseSelection resolves a caller selector into profile names in catalog
// order. It accepts "both", "all", "short", "long", full names, and
// comma-separated combinations.
func ParseSelection(selector string) ([]Name, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" || selector == "both" || selector == "all" {
		return Names(), nil
	}
	wanted := map[Name]bool{}
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "short", "short-form", string(ShortForm), "vertical":
			wanted[ShortForm] = true
		case "long", "long-form", string(LongForm), "horizontal":
			wanted[LongForm] = true
		case "both", "all":
			wanted[ShortForm], wanted[LongForm] = true, true
		default:
			return nil, fmt.Errorf("unknown profile %q", part)
		}
	}
	var names []Name
	for _, name := range Names() {
		if wanted[name] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no profile selected by %q", selector)
	}
	return names, nil
}

func clone(p Profile) Profile {
	p.Layers = slices.Clone(p.Layers)
	for i := range p.Layers {
		if sh := p.Layers[i].Shadow; sh != nil {
			c := *sh
			p.Layers[i].Shadow = &c
		}
		if b := p.Layers[i].Border; b != nil {
			c := *b
			p.Layers[i].Border = &c
		}
	}
	return p
}

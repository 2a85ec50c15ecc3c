package graph

import (
	"errors"
	"fmt"
	"strconv"

	"pipcast/internal/backend"
	"pipcast/internal/geometry"
)

// DefaultColor is the canvas color when the caller supplies none.
const DefaultColor = "black"

// Presence records which optional inputs the invocation carries.
type Presence struct {
	Background bool
}

// Options carries the per-invocation values baked into the graph.
type Options struct {
	// Color is an ffmpeg color expression for the canvas.
	Color string
	// Duration bounds the generated color sources, in seconds.
	Duration float64
}

type builder struct {
	profile geometry.Profile
	kind    backend.Kind
	present Presence
	opts    Options

	sources []Source
	nodes   []Node
	masks   map[geometry.Role]string
	raw     map[SourceKind]string
}

// Build assembles the composition graph for one rendition. The result is a
// pure function of its arguments and is validated before it is returned.
func Build(profile geometry.Profile, kind backend.Kind, present Presence, opts Options) (Graph, error) {
	if err := profile.Validate(); err != nil {
		return Graph{}, err
	}
	if opts.Duration <= 0 {
		return Graph{}, errors.New("graph: duration must be positive")
	}
	if opts.Color == "" {
		opts.Color = DefaultColor
	}

	b := &builder{
		profile: profile,
		kind:    kind,
		present: present,
		opts:    opts,
		masks:   map[geometry.Role]string{},
		raw:     map[SourceKind]string{},
	}
	b.assignSources()

	base := b.canvas()
	base = b.placeBackground(base)
	for _, layer := range profile.Layers {
		if layer.Role != geometry.RoleScreen && layer.Role != geometry.RoleFace {
			continue
		}
		sharp, shadow := b.primaryLayer(layer)
		base = b.overlayLayer(base, layer, sharp, shadow)
	}
	b.terminate(base)

	g := Graph{Profile: profile.Name, Sources: b.sources, Nodes: b.nodes}
	if err := g.Validate(); err != nil {
		return Graph{}, fmt.Errorf("profile %s: %w", profile.Name, err)
	}
	return g, nil
}

// assignSources fixes the input order: screen, face, their masks in z
// order, then the background image and its mask.
func (b *builder) assignSources() {
	add := func(s Source) string {
		s.Index = len(b.sources)
		b.sources = append(b.sources, s)
		return s.Label()
	}
	b.raw[SourceScreen] = add(Source{Kind: SourceScreen})
	b.raw[SourceFace] = add(Source{Kind: SourceFace})
	for _, layer := range b.profile.Layers {
		if layer.Role == geometry.RoleBackgroundImage || !layer.Rounded() {
			continue
		}
		b.masks[layer.Role] = add(Source{Kind: SourceMask, Still: true, Mask: layer.MaskKey()})
	}
	if !b.present.Background {
		return
	}
	if _, ok := b.profile.Layer(geometry.RoleBackgroundImage); !ok {
		return
	}
	b.raw[SourceBackground] = add(Source{Kind: SourceBackground, Still: true})
	if layer, _ := b.profile.Layer(geometry.RoleBackgroundImage); layer.Rounded() {
		b.masks[layer.Role] = add(Source{Kind: SourceMask, Still: true, Mask: layer.MaskKey()})
	}
}

func (b *builder) emit(n Node) string {
	b.nodes = append(b.nodes, n)
	return n.Output()
}

func (b *builder) seconds() string {
	return strconv.FormatFloat(b.opts.Duration, 'f', -1, 64)
}

func size(w, h int) string {
	return fmt.Sprintf("%dx%d", w, h)
}

func (b *builder) canvas() string {
	return b.emit(Node{
		Op:      OpColor,
		Outputs: []string{"canvas"},
		Params: []Param{
			P("c", b.opts.Color),
			P("s", size(b.profile.CanvasWidth, b.profile.CanvasHeight)),
			P("d", b.seconds()),
		},
	})
}

// placeBackground overlays the background image onto the canvas. Without an
// image, or when the image belongs to another layer's backdrop, the canvas
// passes through unchanged.
func (b *builder) placeBackground(canvas string) string {
	layer, ok := b.profile.Layer(geometry.RoleBackgroundImage)
	src, present := b.raw[SourceBackground]
	if !ok || !present || layer.Host != "" {
		return b.emit(Node{Op: OpNull, Inputs: []string{canvas}, Outputs: []string{"base"}})
	}
	img := b.coverFit("bgimg", src, layer, false)
	img = b.emit(Node{Op: OpFormat, Inputs: []string{img}, Outputs: []string{"bgimg_rgba"}, Params: []Param{{Value: "yuva420p"}}})
	img = b.applyMask("bgimg", img, layer.Role)
	img = b.fade("bgimg", img, layer.Opacity)
	return b.emit(Node{
		Op:      OpOverlay,
		Inputs:  []string{canvas, img},
		Outputs: []string{"base"},
		Params:  []Param{P("x", layer.X), P("y", layer.Y)},
	})
}

// coverFit scales src so it covers the layer box and crops the overflow.
// On the hardware path the scale runs on the device and the frames are
// downloaded before the crop.
func (b *builder) coverFit(prefix, src string, layer geometry.LayerSpec, device bool) string {
	scale := []Param{
		{Value: strconv.Itoa(layer.Width)},
		{Value: strconv.Itoa(layer.Height)},
		P("force_original_aspect_ratio", "increase"),
	}
	scaled := prefix + "_scaled"
	if device {
		uploaded := b.emit(Node{Op: OpHWUpload, Inputs: []string{src}, Outputs: []string{prefix + "_dev"}, Device: true})
		onDevice := b.emit(Node{Op: OpScaleCUDA, Inputs: []string{uploaded}, Outputs: []string{prefix + "_scaled_dev"}, Params: scale, Device: true})
		b.emit(Node{Op: OpHWDownload, Inputs: []string{onDevice}, Outputs: []string{scaled}, Device: true})
	} else {
		b.emit(Node{Op: OpScale, Inputs: []string{src}, Outputs: []string{scaled}, Params: scale})
	}
	return b.emit(Node{
		Op:      OpCrop,
		Inputs:  []string{scaled},
		Outputs: []string{prefix + "_cropped"},
		Params:  []Param{{Value: strconv.Itoa(layer.Width)}, {Value: strconv.Itoa(layer.Height)}},
	})
}

// applyMask cuts the rounded corners of role's mask into src.
func (b *builder) applyMask(prefix, src string, role geometry.Role) string {
	mask, ok := b.masks[role]
	if !ok {
		return src
	}
	alpha := b.emit(Node{Op: OpAlphaExtract, Inputs: []string{mask}, Outputs: []string{prefix + "_alpha"}})
	return b.emit(Node{Op: OpAlphaMerge, Inputs: []string{src, alpha}, Outputs: []string{prefix + "_masked"}})
}

func (b *builder) fade(prefix, src string, opacity float64) string {
	if opacity >= 1 {
		return src
	}
	return b.emit(Node{
		Op:      OpColorChannelMixer,
		Inputs:  []string{src},
		Outputs: []string{prefix + "_faded"},
		Params:  []Param{P("aa", strconv.FormatFloat(opacity, 'f', -1, 64))},
	})
}

// primaryLayer prepares screen or face content and returns the sharp label
// plus the shadow label when the layer casts one.
func (b *builder) primaryLayer(layer geometry.LayerSpec) (string, string) {
	prefix := string(layer.Role)
	kind := SourceScreen
	if layer.Role == geometry.RoleFace {
		kind = SourceFace
	}
	cur := b.coverFit(prefix, b.raw[kind], layer, b.kind == backend.Hardware)
	if layer.Backdrop != "" {
		cur = b.backdrop(prefix, cur, layer)
	}
	cur = b.emit(Node{Op: OpFormat, Inputs: []string{cur}, Outputs: []string{prefix + "_rgba"}, Params: []Param{{Value: "yuva420p"}}})
	cur = b.applyMask(prefix, cur, layer.Role)
	cur = b.fade(prefix, cur, layer.Opacity)

	var shadow string
	if layer.Shadow != nil {
		sharp, ghost := prefix+"_sharp", prefix+"_ghost"
		b.emit(Node{Op: OpSplit, Inputs: []string{cur}, Outputs: []string{sharp, ghost}})
		faded := b.emit(Node{
			Op:      OpColorChannelMixer,
			Inputs:  []string{ghost},
			Outputs: []string{prefix + "_ghost_faded"},
			Params:  []Param{P("aa", strconv.FormatFloat(layer.Shadow.Opacity, 'f', -1, 64))},
		})
		radius := strconv.Itoa(layer.Shadow.BlurRadius)
		shadow = b.emit(Node{
			Op:      OpBoxBlur,
			Inputs:  []string{faded},
			Outputs: []string{prefix + "_shadow"},
			Params:  []Param{{Value: radius}, {Value: radius}},
		})
		cur = sharp
	}

	if layer.Border != nil {
		bw := layer.Border.Width
		cur = b.emit(Node{
			Op:      OpPad,
			Inputs:  []string{cur},
			Outputs: []string{prefix + "_framed"},
			Params: []Param{
				P("w", fmt.Sprintf("iw+%d", 2*bw)),
				P("h", fmt.Sprintf("ih+%d", 2*bw)),
				P("x", bw),
				P("y", bw),
				P("color", layer.Border.Color),
			},
		})
	}
	return cur, shadow
}

// backdrop composes content over the layer's solid backdrop box, blending
// in any hosted layer first. Without the hosted input the backdrop passes
// through unchanged.
func (b *builder) backdrop(prefix, content string, layer geometry.LayerSpec) string {
	box := b.emit(Node{
		Op:      OpColor,
		Outputs: []string{prefix + "_backdrop"},
		Params: []Param{
			P("c", layer.Backdrop),
			P("s", size(layer.Width, layer.Height)),
			P("d", b.seconds()),
		},
	})

	var hosted *geometry.LayerSpec
	for _, l := range b.profile.Layers {
		if l.Host == layer.Role {
			hosted = &l
			break
		}
	}
	src, present := b.raw[SourceBackground]
	if hosted != nil && present {
		img := b.coverFit("bgimg", src, *hosted, false)
		img = b.emit(Node{Op: OpFormat, Inputs: []string{img}, Outputs: []string{"bgimg_rgba"}, Params: []Param{{Value: "yuva420p"}}})
		img = b.fade("bgimg", img, hosted.Opacity)
		box = b.emit(Node{
			Op:      OpOverlay,
			Inputs:  []string{box, img},
			Outputs: []string{prefix + "_backdrop_blend"},
			Params:  []Param{P("x", 0), P("y", 0)},
		})
	} else {
		box = b.emit(Node{Op: OpNull, Inputs: []string{box}, Outputs: []string{prefix + "_backdrop_blend"}})
	}

	return b.emit(Node{
		Op:      OpOverlay,
		Inputs:  []string{box, content},
		Outputs: []string{prefix + "_composed"},
		Params:  []Param{P("x", 0), P("y", 0)},
	})
}

func (b *builder) overlayLayer(base string, layer geometry.LayerSpec, sharp, shadow string) string {
	prefix := string(layer.Role)
	if shadow != "" {
		sx, sy := layer.ShadowOffset()
		base = b.emit(Node{
			Op:      OpOverlay,
			Inputs:  []string{base, shadow},
			Outputs: []string{"with_" + prefix + "_shadow"},
			Params:  []Param{P("x", sx), P("y", sy)},
		})
	}
	x, y := layer.Placement()
	return b.emit(Node{
		Op:      OpOverlay,
		Inputs:  []string{base, sharp},
		Outputs: []string{"with_" + prefix},
		Params:  []Param{P("x", x), P("y", y)},
	})
}

// terminate renames the final output to the terminal label.
func (b *builder) terminate(label string) {
	last := &b.nodes[len(b.nodes)-1]
	if last.Output() == label {
		last.Outputs[0] = TerminalLabel
		return
	}
	b.emit(Node{Op: OpNull, Inputs: []string{label}, Outputs: []string{TerminalLabel}})
}

// Topology returns a copy of g with memory-transfer nodes removed and device
// operations replaced by their host equivalents. Hardware and software
// graphs of the same profile have equal topologies.
func Topology(g Graph) Graph {
	out := Graph{Profile: g.Profile, Sources: append([]Source(nil), g.Sources...)}
	rename := map[string]string{}
	for _, n := range g.Nodes {
		n.Inputs = append([]string(nil), n.Inputs...)
		n.Outputs = append([]string(nil), n.Outputs...)
		for i, in := range n.Inputs {
			if to, ok := rename[in]; ok {
				n.Inputs[i] = to
			}
		}
		switch n.Op {
		case OpHWUpload:
			rename[n.Output()] = n.Inputs[0]
			continue
		case OpHWDownload:
			// Hand the download's label to the node that produced its input.
			for i := range out.Nodes {
				for j, o := range out.Nodes[i].Outputs {
					if o == n.Inputs[0] {
						out.Nodes[i].Outputs[j] = n.Output()
					}
				}
			}
			continue
		case OpScaleCUDA:
			n.Op = OpScale
		}
		n.Device = false
		out.Nodes = append(out.Nodes, n)
	}
	return out
}

package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"pipcast/internal/backend"
	"pipcast/internal/config"
	"pipcast/internal/geometry"
	"pipcast/internal/services"
)

// MediaKind is the declared kind of a payload.
type MediaKind string

const (
	MediaUnknown MediaKind = ""
	MediaVideo   MediaKind = "video"
	MediaImage   MediaKind = "image"
)

// KindFromContentType maps a MIME type onto a MediaKind.
func KindFromContentType(contentType string) MediaKind {
	switch {
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		return MediaVideo
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage
	default:
		return MediaUnknown
	}
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".gif": true, ".tif": true, ".tiff": true,
}

// KindFromPath infers a MediaKind from a file extension. Anything that is
// not a known still image is left unknown so ffmpeg can decide.
func KindFromPath(path string) MediaKind {
	if imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return MediaImage
	}
	return MediaUnknown
}

// FilePayload describes a local file input.
func FilePayload(path string) Payload {
	path = strings.TrimSpace(path)
	if path == "" {
		return Payload{}
	}
	return Payload{Kind: KindFromPath(path), Name: filepath.Base(path), Path: path}
}

// Payload is one input, supplied either as a stream or as a local file.
type Payload struct {
	Kind   MediaKind
	Name   string
	Reader io.Reader
	Path   string
}

// Present reports whether the payload carries content.
func (p Payload) Present() bool {
	return p.Reader != nil || strings.TrimSpace(p.Path) != ""
}

// Request is one render invocation.
type Request struct {
	Screen     Payload
	Face       Payload
	Background Payload
	// Color overrides the configured canvas color.
	Color string
	// Profiles is a profile selector such as "both" or "short".
	Profiles string
	// Backend overrides the configured backend policy.
	Backend string
}

type plan struct {
	profiles []geometry.Profile
	color    string
	policy   backend.Policy
	override bool
}

func validationError(op, msg string) error {
	return services.Wrap(services.ErrValidation, "validate", op, msg, nil)
}

func (r Request) validate(cfg *config.Config) (plan, error) {
	var p plan
	if !r.Screen.Present() {
		return p, validationError("screen", "screen recording is required")
	}
	if !r.Face.Present() {
		return p, validationError("face", "face recording is required")
	}
	if r.Screen.Kind == MediaImage {
		return p, validationError("screen", "screen input must be a video")
	}
	if r.Face.Kind == MediaImage {
		return p, validationError("face", "face input must be a video")
	}
	if r.Background.Present() && r.Background.Kind == MediaVideo {
		return p, validationError("background", "background input must be an image")
	}

	p.color = strings.TrimSpace(r.Color)
	if p.color == "" {
		p.color = cfg.Render.BackgroundColor
	}
	if !config.ValidColor(p.color) {
		return p, validationError("color", fmt.Sprintf("unsupported color %q", p.color))
	}

	selector := r.Profiles
	if strings.TrimSpace(selector) == "" {
		selector = strings.Join(cfg.Render.Profiles, ",")
	}
	names, err := geometry.ParseSelection(selector)
	if err != nil {
		return p, services.Wrap(services.ErrValidation, "validate", "profiles", "", err)
	}
	for _, name := range names {
		profile, err := geometry.Lookup(name)
		if err != nil {
			return p, services.Wrap(services.ErrValidation, "validate", "profiles", "", err)
		}
		p.profiles = append(p.profiles, profile)
	}

	if strings.TrimSpace(r.Backend) != "" {
		policy, err := backend.ParsePolicy(r.Backend)
		if err != nil {
			return p, services.Wrap(services.ErrValidation, "validate", "backend", "", err)
		}
		p.policy, p.override = policy, true
	}
	return p, nil
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// stagedName picks the workspace file name for a payload. Only a short
// alphanumeric extension survives from the caller-supplied name.
func stagedName(role, name, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if !extPattern.MatchString(ext) {
		ext = fallbackExt
	}
	return role + ext
}

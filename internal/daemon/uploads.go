package daemon

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pipcast/internal/fileutil"
	"pipcast/internal/pipeline"
	"pipcast/internal/services"
)

// maxFieldBytes caps the plain form values (color, profiles, backend).
const maxFieldBytes = 1 << 10

// mediaParts maps multipart part names to the kind assumed when the client
// sends no usable Content-Type.
var mediaParts = map[string]pipeline.MediaKind{
	"screen":     pipeline.MediaVideo,
	"face":       pipeline.MediaVideo,
	"background": pipeline.MediaImage,
}

// upload is a render request whose media parts were spooled to disk.
type upload struct {
	dir string
	req pipeline.Request
}

// release removes the spooled files.
func (u *upload) release() {
	if u != nil && u.dir != "" {
		_ = os.RemoveAll(u.dir)
	}
}

// readUpload streams a multipart render request into a spool directory under
// the work root, so abandoned spools are swept like stale workspaces.
func (s *apiServer) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	limit := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxFieldBytes*8)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "upload", "multipart", "expected a multipart/form-data body", err)
	}

	dir := filepath.Join(s.cfg.Paths.WorkDir, "upload-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, services.Wrap(services.ErrExecution, "upload", "spool", "", err)
	}
	u := &upload{dir: dir}

	var total int64
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			u.release()
			return nil, services.Wrap(services.ErrValidation, "upload", "multipart", "malformed multipart body", err)
		}
		name := part.FormName()
		if fallback, ok := mediaParts[name]; ok {
			payload, n, err := spoolPart(dir, name, part, fallback, limit-total)
			part.Close()
			if err != nil {
				u.release()
				return nil, services.Wrap(services.ErrValidation, "upload", name, fmt.Sprintf("upload limit is %d MiB", s.cfg.Server.MaxUploadMiB), err)
			}
			total += n
			if !payload.Present() {
				continue
			}
			switch name {
			case "screen":
				u.req.Screen = payload
			case "face":
				u.req.Face = payload
			case "background":
				u.req.Background = payload
			}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		part.Close()
		if err != nil {
			u.release()
			return nil, services.Wrap(services.ErrValidation, "upload", name, "could not read form field", err)
		}
		text := strings.TrimSpace(string(value))
		switch name {
		case "color":
			u.req.Color = text
		case "profiles":
			u.req.Profiles = text
		case "backend":
			u.req.Backend = text
		}
	}
	return u, nil
}

// spoolPart writes one media part into dir. A zero-byte part, which is what
// browsers send for an untouched file input, yields an empty Payload.
func spoolPart(dir, name string, part *multipart.Part, fallback pipeline.MediaKind, remaining int64) (pipeline.Payload, int64, error) {
	if remaining <= 0 {
		var peek [1]byte
		if n, _ := io.ReadFull(part, peek[:]); n > 0 {
			return pipeline.Payload{}, 0, fmt.Errorf("%w: upload budget exhausted before %s", fileutil.ErrTooLarge, name)
		}
		return pipeline.Payload{}, 0, nil
	}
	path := filepath.Join(dir, name)
	n, err := fileutil.WriteStream(path, part, remaining)
	if err != nil {
		return pipeline.Payload{}, n, err
	}
	if n == 0 {
		_ = os.Remove(path)
		return pipeline.Payload{}, 0, nil
	}
	kind := pipeline.KindFromContentType(part.Header.Get("Content-Type"))
	if kind == pipeline.MediaUnknown {
		kind = fallback
	}
	return pipeline.Payload{Kind: kind, Name: part.FileName(), Path: path}, n, nil
}

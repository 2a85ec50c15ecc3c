package masks

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"golang.org/x/sync/singleflight"

	"pipcast/internal/geometry"
	"pipcast/internal/logging"
	"pipcast/internal/services"
)

const lockRetryDelay = 25 * time.Millisecond

// Asset is a mask published in the cache.
type Asset struct {
	Key  Key
	Path string
}

// FileName is the cache file name for key.
func FileName(key Key) string {
	return fmt.Sprintf("mask_%dx%d_t%d_b%d.png", key.Width, key.Height, key.RadiusTop, key.RadiusBottom)
}

// Registry serves masks out of a directory shared across invocations.
type Registry struct {
	dir    string
	logger *slog.Logger
	group  singleflight.Group
}

// NewRegistry returns a registry rooted at dir. The directory is created on
// first use.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	return &Registry{dir: dir, logger: logging.NewComponentLogger(logger, "masks")}
}

// Dir returns the cache directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Path returns where the mask for key lives, whether or not it exists yet.
func (r *Registry) Path(key Key) string {
	return filepath.Join(r.dir, FileName(key))
}

// Ensure returns the mask for key, rasterizing and publishing it when the
// cache does not hold it yet. Safe for concurrent use by goroutines and by
// separate processes sharing the directory.
func (r *Registry) Ensure(ctx context.Context, key Key) (Asset, error) {
	if err := key.Validate(); err != nil {
		return Asset{}, services.Wrap(services.ErrMask, "masks", "ensure", "invalid key", err)
	}
	path := r.Path(key)
	if exists(path) {
		return Asset{Key: key, Path: path}, nil
	}

	_, err, shared := r.group.Do(key.String(), func() (any, error) {
		return nil, r.generate(ctx, key, path)
	})
	if err != nil {
		return Asset{}, err
	}
	if shared {
		r.logger.Debug("mask generation shared", logging.String("mask", key.String()))
	}
	return Asset{Key: key, Path: path}, nil
}

// EnsureProfile makes every mask the profile needs available.
func (r *Registry) EnsureProfile(ctx context.Context, profile geometry.Profile) ([]Asset, error) {
	keys := profile.MaskKeys()
	assets := make([]Asset, 0, len(keys))
	for _, key := range keys {
		asset, err := r.Ensure(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// EnsureAll prepares masks for the whole catalog. The daemon calls it at start.
func (r *Registry) EnsureAll(ctx context.Context) ([]Asset, error) {
	var all []Asset
	for _, profile := range geometry.All() {
		assets, err := r.EnsureProfile(ctx, profile)
		if err != nil {
			return nil, err
		}
		all = append(all, assets...)
	}
	return all, nil
}

func (r *Registry) generate(ctx context.Context, key Key, path string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return services.Wrap(services.ErrMask, "masks", "prepare cache", r.dir, err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrMask, "masks", "lock", key.String(), err)
	}
	if !locked {
		return services.Wrap(services.ErrMask, "masks", "lock", key.String(), errors.New("lock not acquired"))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(r.logger, "mask lock release failed", "mask_unlock_failed",
				logging.String("mask", key.String()),
				logging.Error(err),
				logging.Impact("other processes wait until this one exits"),
			)
		}
	}()

	// Another process may have published while we waited for the lock.
	if exists(path) {
		return nil
	}

	start := time.Now()
	img, err := Rasterize(key)
	if err != nil {
		return services.Wrap(services.ErrMask, "masks", "rasterize", key.String(), err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return services.Wrap(services.ErrMask, "masks", "create pending file", path, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			r.logger.Debug("cleanup pending mask", logging.Error(err))
		}
	}()

	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(pending, img); err != nil {
		return services.Wrap(services.ErrMask, "masks", "encode", key.String(), err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return services.Wrap(services.ErrMask, "masks", "publish", path, err)
	}

	r.logger.Info("mask generated",
		logging.String("mask", key.String()),
		logging.String("shape", ShapeOf(key).String()),
		logging.String("path", path),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

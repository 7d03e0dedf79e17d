// Package media is the boundary to the media upload service.
//
// An [Uploader] takes a raw file and returns where it was stored along with what
// the gallery keeps about it: a public URL, format, byte size, pixel dimensions for
// images, and the asset id needed to delete the file later.
package media

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrTooLarge is returned for files above the uploader's size limit.
	ErrTooLarge = errors.New("file exceeds upload size limit")

	// ErrInvalidAsset is returned by Delete for ids Upload could not have issued.
	ErrInvalidAsset = errors.New("invalid asset id")
)

var (
	folderSegment = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	extPattern    = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// thumbnailDir holds generated thumbnails next to their originals.
const thumbnailDir = "thumbnails"

// ValidAssetID reports whether id has the shape of a key issued by Upload: optional
// folder segments followed by a UUID file name and a short lowercase extension.
// Thumbnail keys are not asset ids.
func ValidAssetID(id string) bool {
	dir, file := path.Split(id)
	if dir != "" {
		for _, seg := range strings.Split(strings.TrimSuffix(dir, "/"), "/") {
			if !folderSegment.MatchString(seg) || seg == thumbnailDir {
				return false
			}
		}
	}
	ext := path.Ext(file)
	if ext != "" && !extPattern.MatchString(ext) {
		return false
	}
	name := strings.TrimSuffix(file, ext)
	if len(name) != 36 {
		return false
	}
	_, err := uuid.Parse(name)
	return err == nil
}

// File is an upload request body.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Options select where and how a file is stored.
type Options struct {
	// Preset names the upload profile. It is recorded with the stored object.
	Preset string
	// Folder is the path prefix of the stored object, such as "gallery/2024".
	Folder string
}

// Result describes a stored file.
type Result struct {
	AssetID      string  `json:"assetId"`
	SecureURL    string  `json:"secureUrl"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Format       string  `json:"format"`
	Bytes        int64   `json:"bytes"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	ResourceType string  `json:"resourceType"`
}

// Uploader stores and deletes media files.
type Uploader interface {
	Upload(ctx context.Context, f File, opts Options) (*Result, error)
	Delete(ctx context.Context, assetID string) error
}

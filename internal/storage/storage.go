// Package storage keeps uploaded documents and images on local disk and
// serves them under public URLs.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	_ "image/png" // register png
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp
)

var (
	// ErrTooLarge is returned when an upload exceeds its size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrUnsupportedType is returned for a disallowed file extension.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Kind describes one class of stored file.
type Kind struct {
	Name       string
	Extensions []string
	MaxBytes   int64
	// MaxDimension > 0 marks the kind as an image that is decoded,
	// downscaled to fit and stored as JPEG.
	MaxDimension int
}

const mb = 1 << 20

// Kinds accepted by the store, keyed by upload field name.
var Kinds = map[string]Kind{
	"avatar":           {Name: "avatar", Extensions: imageExtensions, MaxBytes: 5 * mb, MaxDimension: 512},
	"educational_doc":  {Name: "educational_doc", Extensions: docExtensions, MaxBytes: 10 * mb},
	"professional_doc": {Name: "professional_doc", Extensions: docExtensions, MaxBytes: 10 * mb},
	"experience_doc":   {Name: "experience_doc", Extensions: docExtensions, MaxBytes: 10 * mb},
	"government_id":    {Name: "government_id", Extensions: docExtensions, MaxBytes: 10 * mb},
	"soil":             {Name: "soil", Extensions: imageExtensions, MaxBytes: 10 * mb, MaxDimension: 1024},
}

var (
	docExtensions   = []string{".pdf", ".jpg", ".jpeg", ".png"}
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// JPEGQuality is used when re-encoding downscaled images.
const JPEGQuality = 85

// Object is a stored file.
type Object struct {
	Key  string `json:"key"` // slash separated, relative to the store root
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Store is a directory of uploaded files.
type Store struct {
	root    string
	baseURL string
}

// New returns a Store rooted at dir whose files are reachable under
// baseURL (for example "http://localhost:8080/files").
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the storage directory.
func (s *Store) Root() string { return s.root }

// URL returns the public URL of key.
func (s *Store) URL(key string) string { return s.baseURL + "/" + key }

// Save writes r as a file of the given kind owned by ownerID. The original
// filename only contributes its extension.
func (s *Store) Save(kindName, ownerID, filename string, r io.Reader) (*Object, error) {
	kind, ok := Kinds[kindName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnsupportedType, kindName)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowed(kind.Extensions, ext) {
		return nil, fmt.Errorf("%w: %s must be one of %s", ErrUnsupportedType, kind.Name, strings.Join(kind.Extensions, ", "))
	}

	data, err := io.ReadAll(io.LimitReader(r, kind.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind.Name, err)
	}
	if int64(len(data)) > kind.MaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d MB", ErrTooLarge, kind.Name, kind.MaxBytes/mb)
	}

	if kind.MaxDimension > 0 {
		data, err = Downscale(data, kind.MaxDimension)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", kind.Name, err)
		}
		ext = ".jpg"
	}

	key := path.Join(kind.Name, safeSegment(ownerID), uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", kind.Name, err)
	}
	return &Object{Key: key, URL: s.URL(key), Size: int64(len(data))}, nil
}

// Open opens a stored file by key.
func (s *Store) Open(key string) (*os.File, error) {
	return os.Open(s.path(key))
}

// Remove deletes a stored file. A missing file is not an error.
func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) path(key string) string {
	clean := path.Clean("/" + key)
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

// Handler serves stored files. Directory listings are refused.
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// Downscale decodes an image, shrinks it to fit within maxDim on its longest
// side while keeping the aspect ratio, and returns it JPEG encoded. Images
// already small enough are only re-encoded.
func Downscale(data []byte, maxDim int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	w, h := FitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// FitWithin scales w x h down so neither side exceeds maxDim.
func FitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

func allowed(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// safeSegment keeps IDs from escaping their directory.
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

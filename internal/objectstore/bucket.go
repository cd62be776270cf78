// Package objectstore keeps uploaded attachments in named public buckets.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// PublicPathPrefix is the URL path under which public buckets are served.
const PublicPathPrefix = "/storage/v1/object/public"

var (
	// ErrInvalidName is returned for object names that would escape the bucket.
	ErrInvalidName = errors.New("objectstore: invalid object name")
	// ErrObjectExists is returned when an object name is already taken.
	ErrObjectExists = errors.New("objectstore: object already exists")
)

// Bucket is a flat namespace of objects reachable at a public URL.
type Bucket struct {
	name    string
	fs      afero.Fs
	baseURL string
}

// NewBucket stores objects of bucket name under root on fs. publicBaseURL is the
// externally reachable origin of this server, e.g. http://localhost:8080.
func NewBucket(fs afero.Fs, root, name, publicBaseURL string) (*Bucket, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid bucket name %q", name)
	}
	bucketFs := afero.NewBasePathFs(fs, root)
	if err := bucketFs.MkdirAll("/"+name, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &Bucket{
		name:    name,
		fs:      afero.NewBasePathFs(bucketFs, "/"+name),
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// NewOSBucket is NewBucket on the host filesystem.
func NewOSBucket(root, name, publicBaseURL string) (*Bucket, error) {
	return NewBucket(afero.NewOsFs(), root, name, publicBaseURL)
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Put writes r under object name. Existing objects are never overwritten.
func (b *Bucket) Put(ctx context.Context, name string, r io.Reader) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := b.fs.OpenFile("/"+name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrObjectExists, name)
		}
		return fmt.Errorf("create object: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = b.fs.Remove("/" + name)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = b.fs.Remove("/" + name)
		return fmt.Errorf("close object: %w", err)
	}
	return nil
}

// Open returns a reader for object name.
func (b *Bucket) Open(name string) (afero.File, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return b.fs.Open("/" + name)
}

// PublicURL returns the URL at which object name is served.
func (b *Bucket) PublicURL(name string) string {
	return b.baseURL + path.Join(PublicPathPrefix, b.name, url.PathEscape(name))
}

// FileSystem exposes the bucket for read-only HTTP serving.
func (b *Bucket) FileSystem() http.FileSystem {
	return afero.NewHttpFs(afero.NewReadOnlyFs(b.fs))
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

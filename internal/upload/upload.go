// Package upload validates outgoing attachments and pushes them to the public bucket.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxFileSize is the largest accepted attachment, inclusive.
const MaxFileSize int64 = 5 * 1024 * 1024

// AllowedTypes is the MIME allow-list for attachments.
var AllowedTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// extensions lists the accepted file extensions per allowed type, canonical first.
var extensions = map[string][]string{
	"image/jpeg":         {"jpg", "jpeg"},
	"image/png":          {"png"},
	"image/gif":          {"gif"},
	"application/pdf":    {"pdf"},
	"application/msword": {"doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {"docx"},
}

// ErrNoContent is returned when a file has no readable content.
var ErrNoContent = errors.New("upload: file has no content")

// Reason tells the user why a file was rejected.
type Reason string

const (
	ReasonTooLarge    Reason = "file_too_large"
	ReasonInvalidType Reason = "invalid_file_type"
)

// RejectionError is a validation failure raised before any network call.
type RejectionError struct {
	Reason      Reason
	Title       string
	Description string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Description)
}

// File is an attachment selected by the user.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// IsImage reports whether the file should be shown inline.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

// Bucket is the managed object storage the uploader writes to.
type Bucket interface {
	Put(ctx context.Context, name string, r io.Reader) error
	PublicURL(name string) string
}

// Uploader validates and stores attachments.
type Uploader struct {
	bucket Bucket
	newID  func() string
}

// New creates an uploader writing to bucket.
func New(bucket Bucket) *Uploader {
	return &Uploader{bucket: bucket, newID: uuid.NewString}
}

// Validate checks f against the size ceiling and the type allow-list. A missing or
// generic declared type is resolved by sniffing the content; f.ContentType is
// updated with the resolved type.
func (u *Uploader) Validate(f *File) error {
	if f == nil {
		return ErrNoContent
	}
	if f.Size > MaxFileSize {
		return &RejectionError{
			Reason:      ReasonTooLarge,
			Title:       "File too large",
			Description: fmt.Sprintf("Please select a file under %s", humanize.IBytes(uint64(MaxFileSize))),
		}
	}

	contentType, err := resolveType(f)
	if err != nil {
		return err
	}
	f.ContentType = contentType

	if !AllowedTypes[contentType] {
		return &RejectionError{
			Reason:      ReasonInvalidType,
			Title:       "Invalid file type",
			Description: "Please select an image, PDF, or Word document",
		}
	}
	return nil
}

// Upload stores a validated file under a fresh random name and returns its public
// URL. The name's extension always matches the validated type.
func (u *Uploader) Upload(ctx context.Context, f File) (string, error) {
	if f.Content == nil {
		return "", ErrNoContent
	}
	if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}

	name := u.newID()
	if ext := storedExtension(f.Name, f.ContentType); ext != "" {
		name += "." + ext
	}

	if err := u.bucket.Put(ctx, name, io.LimitReader(f.Content, MaxFileSize)); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return u.bucket.PublicURL(name), nil
}

func resolveType(f *File) (string, error) {
	declared := normalizeType(f.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	if f.Content == nil {
		return declared, nil
	}

	if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	detected, err := mimetype.DetectReader(f.Content)
	if err != nil {
		return "", fmt.Errorf("detect type: %w", err)
	}
	if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	return normalizeType(detected.String()), nil
}

func normalizeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// TypeByExtension returns the allowed content type a stored object name maps to.
func TypeByExtension(name string) (string, bool) {
	ext := extension(name)
	for contentType, exts := range extensions {
		if slices.Contains(exts, ext) {
			return contentType, true
		}
	}
	return "", false
}

// storedExtension keeps the client's extension only when it agrees with contentType.
func storedExtension(name, contentType string) string {
	exts := extensions[contentType]
	if len(exts) == 0 {
		return ""
	}
	if ext := extension(name); slices.Contains(exts, ext) {
		return ext
	}
	return exts[0]
}

// extension returns the lowercased part of name after its last dot, without the dot.
func extension(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

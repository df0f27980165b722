// Package storage defines the external file host that request attachments live on.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxFileSize is the largest attachment accepted (10 MiB)
const MaxFileSize int64 = 10 * 1024 * 1024

// Upload folders on the file host, chosen by MIME type
const (
	FolderImages    = "requests/images"
	FolderDocuments = "requests/documents"
	FolderOthers    = "requests/others"
)

var (
	// ErrNotConfigured is returned by a store without credentials
	ErrNotConfigured = errors.New("file host is not configured")
	// ErrTooLarge is returned for files over MaxFileSize
	ErrTooLarge = fmt.Errorf("file exceeds the %d MB limit", MaxFileSize/(1024*1024))
)

// File is an attachment about to be uploaded
type File struct {
	Name string
	Type string
	Size int64
	Body io.Reader
}

// Object is a stored file on the host
type Object struct {
	URL          string
	PublicID     string
	ThumbnailURL string // images only
}

// FileStore uploads and deletes attachment files
type FileStore interface {
	Upload(ctx context.Context, f File) (*Object, error)
	// Delete removes a stored object; deleting an object that no longer exists succeeds.
	Delete(ctx context.Context, publicID, fileType string) error
}

// Validate checks a file before it is sent to the host
func Validate(f File) error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("file name is required")
	}
	if f.Body == nil {
		return fmt.Errorf("file %s has no content", f.Name)
	}
	if f.Size > MaxFileSize {
		return fmt.Errorf("%s: %w", f.Name, ErrTooLarge)
	}
	return nil
}

// FolderFor returns the upload folder for a MIME type
func FolderFor(mime string) string {
	switch {
	case IsImage(mime):
		return FolderImages
	case IsPDF(mime):
		return FolderDocuments
	default:
		return FolderOthers
	}
}

// ResourceTypeFor returns the host's resource type for a MIME type.
// Images and PDFs are stored as images, videos and audio as video, everything else raw.
func ResourceTypeFor(mime string) string {
	switch {
	case IsImage(mime), IsPDF(mime):
		return "image"
	case strings.HasPrefix(mime, "video/"), strings.HasPrefix(mime, "audio/"):
		return "video"
	default:
		return "raw"
	}
}

// IsImage reports whether the MIME type is an image
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

// IsPDF reports whether the MIME type is a PDF document
func IsPDF(mime string) bool {
	return mime == "application/pdf"
}

// Disabled is the FileStore used when no file host is configured
type Disabled struct{}

// Upload always fails with ErrNotConfigured
func (Disabled) Upload(context.Context, File) (*Object, error) {
	return nil, ErrNotConfigured
}

// Delete always fails with ErrNotConfigured
func (Disabled) Delete(context.Context, string, string) error {
	return ErrNotConfigured
}

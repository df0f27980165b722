// Package cloudinary stores request attachments on Cloudinary.
package cloudinary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	sdk "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	sdkconfig "github.com/cloudinary/cloudinary-go/v2/config"

	"github.com/xelth-com/eckdesk/internal/storage"
)

// DefaultAPIURL is the Cloudinary upload API endpoint
const DefaultAPIURL = "https://api.cloudinary.com"

// ThumbnailTransformation is the preview applied to uploaded images
const ThumbnailTransformation = "w_150,h_150,c_fill"

// Config holds Cloudinary credentials
type Config struct {
	CloudName    string
	UploadPreset string // unsigned preset used for uploads
	APIKey       string // needed for deletes only
	APISecret    string // needed for deletes only
	APIURL       string // defaults to DefaultAPIURL
	Timeout      time.Duration
}

// Client implements storage.FileStore on the Cloudinary SDK
type Client struct {
	config Config
	cld    *sdk.Cloudinary
}

// NewClient creates a Cloudinary client
func NewClient(config Config) (*Client, error) {
	if config.CloudName == "" {
		return nil, fmt.Errorf("cloudinary cloud name is required")
	}
	if config.UploadPreset == "" {
		return nil, fmt.Errorf("cloudinary upload preset is required")
	}
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	conf, err := sdkconfig.NewFromParams(config.CloudName, config.APIKey, config.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	conf.API.UploadPrefix = config.APIURL
	conf.API.Timeout = int64(config.Timeout / time.Second)

	cld, err := sdk.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	return &Client{config: config, cld: cld}, nil
}

// Upload sends a file through the unsigned upload preset into the folder for its type
func (c *Client) Upload(ctx context.Context, f storage.File) (*storage.Object, error) {
	if err := storage.Validate(f); err != nil {
		return nil, err
	}

	// the declared size is advisory; the body itself must stay within the limit
	data, err := io.ReadAll(io.LimitReader(f.Body, storage.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if int64(len(data)) > storage.MaxFileSize {
		return nil, fmt.Errorf("%s: %w", f.Name, storage.ErrTooLarge)
	}

	resp, err := c.cld.Upload.UnsignedUpload(ctx, bytes.NewReader(data), c.config.UploadPreset, uploader.UploadParams{
		Folder: storage.FolderFor(f.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("upload %s: cloudinary: %s", f.Name, resp.Error.Message)
	}
	if resp.SecureURL == "" || resp.PublicID == "" {
		return nil, fmt.Errorf("upload %s: response is missing url or public id", f.Name)
	}

	obj := &storage.Object{URL: resp.SecureURL, PublicID: resp.PublicID}
	if storage.IsImage(f.Type) {
		if thumb, err := c.ThumbnailURL(resp.PublicID); err == nil {
			obj.ThumbnailURL = thumb
		} else {
			log.Printf("⚠️ Cloudinary: no thumbnail for %s: %v", resp.PublicID, err)
		}
	}

	log.Printf("☁️ Cloudinary: uploaded %s (%d bytes) as %s", f.Name, len(data), resp.PublicID)
	return obj, nil
}

// Delete destroys an uploaded object. The SDK signs the request with the API secret.
func (c *Client) Delete(ctx context.Context, publicID, fileType string) error {
	if c.config.APIKey == "" || c.config.APISecret == "" {
		return fmt.Errorf("delete %s: %w", publicID, storage.ErrNotConfigured)
	}
	if publicID == "" {
		return fmt.Errorf("public id is required")
	}

	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: storage.ResourceTypeFor(fileType),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("delete %s: cloudinary: %s", publicID, resp.Error.Message)
	}

	switch resp.Result {
	case "ok":
		log.Printf("☁️ Cloudinary: deleted %s", publicID)
		return nil
	case "not found":
		log.Printf("⚠️ Cloudinary: %s was already gone", publicID)
		return nil
	}
	return fmt.Errorf("delete %s: unexpected result %q", publicID, resp.Result)
}

// DeliveryURL returns the public URL of an image, optionally with a transformation
func (c *Client) DeliveryURL(publicID, transformation string) (string, error) {
	img, err := c.cld.Image(publicID)
	if err != nil {
		return "", err
	}
	img.Transformation = transformation
	return img.String()
}

// ThumbnailURL returns a 150x150 cropped preview of an image
func (c *Client) ThumbnailURL(publicID string) (string, error) {
	return c.DeliveryURL(publicID, ThumbnailTransformation)
}

// Package storage keeps uploaded objects on the local filesystem, one
// directory per bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"committeeDashboard/internal/dataservice"
)

// ErrTooLarge is returned when an upload exceeds the bucket size limit.
var ErrTooLarge = errors.New("storage: object exceeds size limit")

// Disk stores objects under Root/<bucket>/<path> and serves them under
// BaseURL/storage/<bucket>/<path>.
type Disk struct {
	Root     string
	BaseURL  string
	MaxBytes int64
}

var _ dataservice.Storage = (*Disk)(nil)

// NewDisk creates the root directory if needed.
func NewDisk(root, baseURL string, maxBytes int64) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Disk{Root: root, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}, nil
}

func (d *Disk) resolve(bucket, objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if bucket == "" || strings.ContainsAny(bucket, `/\.`) || clean == "/" {
		return "", dataservice.Wrap(dataservice.KindInvalid, "invalid object path "+bucket+"/"+objectPath, nil)
	}
	return filepath.Join(d.Root, bucket, filepath.FromSlash(clean)), nil
}

// Upload writes body to bucket/path. Existing objects are not overwritten.
func (d *Disk) Upload(ctx context.Context, bucket, objectPath string, body io.Reader) error {
	target, err := d.resolve(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("storage: create bucket dir: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return dataservice.Wrap(dataservice.KindConstraint, "object already exists: "+objectPath, err)
		}
		return fmt.Errorf("storage: create object: %w", err)
	}

	reader := body
	if d.MaxBytes > 0 {
		reader = io.LimitReader(body, d.MaxBytes+1)
	}
	n, copyErr := io.Copy(f, reader)
	closeErr := f.Close()

	if copyErr == nil && d.MaxBytes > 0 && n > d.MaxBytes {
		copyErr = ErrTooLarge
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		if copyErr != nil {
			return fmt.Errorf("storage: write object: %w", copyErr)
		}
		return fmt.Errorf("storage: close object: %w", closeErr)
	}
	return nil
}

// PublicURL returns the address the object is served from.
func (d *Disk) PublicURL(bucket, objectPath string) string {
	escaped := make([]string, 0)
	for _, part := range strings.Split(strings.TrimPrefix(objectPath, "/"), "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return d.BaseURL + "/storage/" + url.PathEscape(bucket) + "/" + strings.Join(escaped, "/")
}

// Handler serves stored objects; mount it under /storage/.
func (d *Disk) Handler() http.Handler {
	return http.StripPrefix("/storage/", http.FileServer(http.Dir(d.Root)))
}

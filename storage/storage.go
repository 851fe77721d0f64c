// Package storage hands out download links for document files.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openhouse/portalcache/config"
)

// DefaultLinkExpiry is how long a presigned link works.
const DefaultLinkExpiry = 15 * time.Minute

// Presigner is the part of *minio.Client used to sign links.
type Presigner interface {
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

/*
Links turns a document's stored file URL into something a purchaser can
download.

Absolute http(s) URLs are served as they are. Anything else is an object
key in the documents bucket and gets a presigned link. Without object
storage configured, keys cannot be served.
*/
type Links struct {
	presigner Presigner
	bucket    string
	Expiry    time.Duration
}

// New connects to the object store in c. An empty endpoint gives Links that
// only serve absolute URLs.
func New(c config.S3) (*Links, error) {
	if c.Endpoint == "" {
		return &Links{Expiry: DefaultLinkExpiry}, nil
	}

	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object storage: %w", err)
	}
	return NewWithPresigner(mc, c.Bucket), nil
}

func NewWithPresigner(p Presigner, bucket string) *Links {
	return &Links{presigner: p, bucket: bucket, Expiry: DefaultLinkExpiry}
}

// URL returns the link for fileURL. title, when set, names the download.
func (l *Links) URL(ctx context.Context, fileURL, title string) (string, error) {
	if u, err := url.Parse(fileURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return fileURL, nil
	}
	if l.presigner == nil {
		return "", fmt.Errorf("no object storage configured for %q", fileURL)
	}

	key := strings.TrimPrefix(fileURL, "/")
	key = strings.TrimPrefix(key, l.bucket+"/")

	params := url.Values{}
	if title != "" {
		name := title
		if path.Ext(name) == "" {
			name += path.Ext(key)
		}
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	u, err := l.presigner.PresignedGetObject(ctx, l.bucket, key, l.Expiry, params)
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return u.String(), nil
}

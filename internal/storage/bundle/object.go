package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig configures an S3-compatible bundle store.
type ObjectConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Prefix is prepended to object names, e.g. "alice/novel/".
	Prefix string
}

// ObjectArchive copies bundle files to and from S3-compatible storage.
type ObjectArchive struct {
	client *minio.Client
	bucket string
	prefix string
}

// ObjectInfo describes a stored bundle object.
type ObjectInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// NewObjectArchive creates a client for cfg. No request is made until the
// first call.
func NewObjectArchive(cfg ObjectConfig) (*ObjectArchive, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("bundle: object endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("bundle: object client: %w", err)
	}
	return &ObjectArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (o *ObjectArchive) EnsureBucket(ctx context.Context) error {
	ok, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("bundle: bucket exists: %w", err)
	}
	if ok {
		return nil
	}
	if err := o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("bundle: make bucket: %w", err)
	}
	return nil
}

// Upload stores a local bundle file and returns its object name. progress,
// when non-nil, is read as bytes are sent.
func (o *ObjectArchive) Upload(ctx context.Context, info *Info, progress io.Reader) (string, error) {
	name := o.prefix + filepath.Base(info.Path)
	_, err := o.client.FPutObject(ctx, o.bucket, name, info.Path, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			"checksum": info.Checksum,
		},
		Progress: progress,
	})
	if err != nil {
		return "", fmt.Errorf("bundle: upload %s: %w", name, err)
	}
	return name, nil
}

// Download fetches an object into dir, verifies it, and returns the local
// path.
func (o *ObjectArchive) Download(ctx context.Context, name, dir string) (string, error) {
	if !strings.HasPrefix(name, o.prefix) {
		name = o.prefix + name
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := o.client.FGetObject(ctx, o.bucket, name, path, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("bundle: download %s: %w", name, err)
	}
	if _, _, err := LoadFile(path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// List returns stored bundles, oldest first.
func (o *ObjectArchive) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{
		Prefix:    o.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("bundle: list objects: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, FileExtension) {
			continue
		}
		out = append(out, ObjectInfo{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Prune keeps the newest keep objects and removes the rest.
func (o *ObjectArchive) Prune(ctx context.Context, keep int) (int, error) {
	objs, err := o.List(ctx)
	if err != nil {
		return 0, err
	}
	excess := len(objs) - keep
	removed := 0
	for i := 0; i < excess; i++ {
		if err := o.client.RemoveObject(ctx, o.bucket, objs[i].Name, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("bundle: remove %s: %w", objs[i].Name, err)
		}
		removed++
	}
	return removed, nil
}

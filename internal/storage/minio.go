package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/internal/static"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"
)

// Bucket serves the public front end out of an object storage bucket.
// Object keys are the public file names under an optional prefix.
type Bucket struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ static.Source = (*Bucket)(nil)

// NewBucket creates the client without touching the network.
func NewBucket(cfg config.MinIOConfig) (*Bucket, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &Bucket{client: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (b *Bucket) EnsureBucket(ctx context.Context) error {
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := b.client.BucketExists(ctx, b.bucket)
		if xerr != nil || !exist {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

// Key maps a public file name to its object key.
func (b *Bucket) Key(name string) string {
	return path.Join(b.prefix, name)
}

// ReadFile downloads a whole object.
func (b *Bucket) ReadFile(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.Key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	// perform a stat to ensure object exists
	if _, err := obj.Stat(); err != nil {
		return nil, err
	}
	return io.ReadAll(obj)
}

// Upload stores data under the object key for name.
func (b *Bucket) Upload(ctx context.Context, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.Key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: static.ContentType(name), CacheControl: "no-store"})
	return err
}

// Publish uploads every regular file of fs, keyed by its slash path relative to
// the filesystem root, and returns how many objects were written.
func (b *Bucket) Publish(ctx context.Context, fs afero.Fs) (int, error) {
	n := 0
	err := afero.Walk(fs, "", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(p)
		if err := b.Upload(ctx, name, data); err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		n++
		return nil
	})
	return n, err
}

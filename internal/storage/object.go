package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
)

// ObjectStore reads and writes catalog files in an S3-compatible bucket (MinIO, S3).
// Keys use the same extensions as local files, so .zst and .lz4 objects are decompressed.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// ObjectInfo describes a stored catalog object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

// NewObjectStore creates a client for cfg. It does not contact the server.
func NewObjectStore(cfg config.ObjectStoreConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return NewObjectStoreWithClient(client, cfg.Bucket), nil
}

// NewObjectStoreWithClient wraps an existing client.
func NewObjectStoreWithClient(client *minio.Client, bucket string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket}
}

// Stat returns object metadata, or ErrCatalogNotFound.
func (s *ObjectStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, key)
		}
		return nil, err
	}
	return &ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// LoadCatalog downloads and decodes the catalog stored at key. The catalog is named
// after the key's base name unless opts override it.
func (s *ObjectStore) LoadCatalog(ctx context.Context, key string, opts ...catalog.Option) (*catalog.Catalog, error) {
	if _, err := s.Stat(ctx, key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	rc, err := catalog.NewDecompressor(obj, catalog.CompressionFor(key))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	c, err := catalog.Read(rc, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3://%s/%s: %w", s.bucket, key, err)
	}
	return c, nil
}

// SaveCatalog encodes c (compressed by the key's extension) and uploads it to key.
func (s *ObjectStore) SaveCatalog(ctx context.Context, key string, c *catalog.Catalog, opts catalog.WriteOptions) error {
	var buf bytes.Buffer
	cw, err := catalog.NewCompressor(&buf, catalog.CompressionFor(key))
	if err != nil {
		return err
	}
	if err := catalog.Write(cw, c, opts); err != nil {
		_ = cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// List returns the catalog objects under prefix.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	return out, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// catalogName derives a catalog name from an object key or file path ("a/image.kgc.zst" -> "image").
func catalogName(p string) string {
	base := path.Base(p)
	for {
		ext := path.Ext(base)
		if ext == "" || ext == base {
			return base
		}
		base = base[:len(base)-len(ext)]
	}
}

// Package objectstore implements a store backend on an S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// Config locates the bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	Secure    bool
}

// Validate checks the required fields.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return zerr.Wrap(domain.ErrStoreCreateFailed, "object store endpoint is required")
	case strings.TrimSpace(c.Bucket) == "":
		return zerr.Wrap(domain.ErrStoreCreateFailed, "object store bucket is required")
	case strings.Contains(c.Endpoint, "://"):
		return zerr.With(zerr.Wrap(domain.ErrStoreCreateFailed, "object store endpoint must be host:port without scheme"), "endpoint", c.Endpoint)
	}
	return nil
}

// Backend implements ports.Backend on a bucket. Uploads are conditional on
// the key being absent (If-None-Match: *), so racing writers of one digest
// produce exactly one object.
type Backend struct {
	client *minio.Client
	cfg    Config
}

// New builds the client without contacting the endpoint.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrStoreCreateFailed, err), "create object store client"), "endpoint", cfg.Endpoint)
	}
	return &Backend{client: client, cfg: cfg}, nil
}

// Open builds the client and creates the bucket if it does not exist.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	b, err := New(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := b.client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrStoreCreateFailed, err), "check bucket"), "bucket", cfg.Bucket)
	}
	if !exists {
		if err := b.client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, zerr.With(zerr.Wrap(errors.Join(domain.ErrStoreCreateFailed, err), "create bucket"), "bucket", cfg.Bucket)
		}
	}
	return b, nil
}

// ObjectKey returns the key d is stored under: prefix/ab/abcdef...
func ObjectKey(prefix string, d domain.Digest) string {
	hex := d.String()
	return path.Join(strings.Trim(prefix, "/"), hex[:2], hex)
}

// PutIfAbsent uploads blob unless an object already exists under d. When
// the upload loses to an existing object, that object is read back.
func (b *Backend) PutIfAbsent(ctx context.Context, d domain.Digest, blob []byte) ([]byte, bool, error) {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	opts.SetMatchETagExcept("*")

	_, err := b.client.PutObject(ctx, b.cfg.Bucket, ObjectKey(b.cfg.Prefix, d), bytes.NewReader(blob), int64(len(blob)), opts)
	if err == nil {
		return nil, true, nil
	}
	if !isAlreadyPresent(err) {
		return nil, false, zerr.Wrap(err, "put object")
	}

	existing, ok, err := b.Get(ctx, d)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, zerr.With(zerr.New("conditional put conflicted but no object is stored"), "digest", d.String())
	}
	return existing, false, nil
}

// Get downloads the object under d.
func (b *Backend) Get(ctx context.Context, d domain.Digest) ([]byte, bool, error) {
	obj, err := b.client.GetObject(ctx, b.cfg.Bucket, ObjectKey(b.cfg.Prefix, d), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, zerr.Wrap(err, "get object")
	}
	defer func() { _ = obj.Close() }()

	blob, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, zerr.Wrap(err, "read object")
	}
	return blob, true, nil
}

// Contains stats the object under d.
func (b *Backend) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	_, err := b.client.StatObject(ctx, b.cfg.Bucket, ObjectKey(b.cfg.Prefix, d), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, zerr.Wrap(err, "stat object")
}

// Entries lists the objects under the configured prefix. Keys that are not
// digests are skipped.
func (b *Backend) Entries(ctx context.Context) ([]ports.Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := strings.Trim(b.cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	var out []ports.Entry
	for obj := range b.client.ListObjects(ctx, b.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, zerr.Wrap(obj.Err, "list objects")
		}
		d, err := domain.ParseDigest(path.Base(obj.Key))
		if err != nil {
			continue
		}
		out = append(out, ports.Entry{Digest: d, Size: obj.Size})
	}
	return out, nil
}

// Close is a no-op; the client holds no resources beyond its transport.
func (b *Backend) Close() error {
	return nil
}

// isAlreadyPresent reports a failed If-None-Match precondition. S3 answers
// 409 when a concurrent conditional write to the key is still in progress.
func isAlreadyPresent(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == minio.PreconditionFailed ||
		resp.StatusCode == http.StatusPreconditionFailed ||
		resp.StatusCode == http.StatusConflict
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

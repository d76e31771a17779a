// Package blob stores PDFs and signature images in public buckets. Each
// backend is constructed with the buckets it serves and enforces their size
// and content-type limits on every write.
package blob

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dharsanguruparan/VaultSign/internal/config"
)

// ErrRejected wraps writes that violate a bucket's limits.
var ErrRejected = errors.New("object rejected by bucket policy")

// Bucket describes one bucket and the objects it accepts.
type Bucket struct {
	Name         string
	Public       bool
	SizeLimit    int64
	AllowedTypes []string
}

// Check validates an object against the bucket limits.
func (b Bucket) Check(size int64, contentType string) error {
	if size <= 0 {
		return fmt.Errorf("%w: %s: empty object", ErrRejected, b.Name)
	}
	if b.SizeLimit > 0 && size > b.SizeLimit {
		return fmt.Errorf("%w: %s: %d bytes exceeds limit of %d", ErrRejected, b.Name, size, b.SizeLimit)
	}
	if len(b.AllowedTypes) == 0 {
		return nil
	}
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, allowed := range b.AllowedTypes {
		if strings.EqualFold(allowed, base) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s: content type %q not allowed", ErrRejected, b.Name, contentType)
}

// Object is a listing entry.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Buckets returns the PDF and signature bucket definitions from cfg.
func Buckets(cfg *config.Config) (pdfs, signatures Bucket) {
	pdfs = Bucket{
		Name:         cfg.PDFBucket,
		Public:       true,
		SizeLimit:    cfg.MaxPDFSize,
		AllowedTypes: []string{"application/pdf"},
	}
	signatures = Bucket{
		Name:         cfg.SignatureBucket,
		Public:       true,
		SizeLimit:    cfg.MaxSigSize,
		AllowedTypes: []string{"image/png", "image/jpeg"},
	}
	return pdfs, signatures
}

type registry map[string]Bucket

func newRegistry(buckets []Bucket) registry {
	r := make(registry, len(buckets))
	for _, b := range buckets {
		r[b.Name] = b
	}
	return r
}

func (r registry) check(bucket string, size int64, contentType string) error {
	b, ok := r[bucket]
	if !ok {
		return fmt.Errorf("%w: unknown bucket %s", ErrRejected, bucket)
	}
	return b.Check(size, contentType)
}

func publicURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}

// publicReadPolicy is the S3 bucket policy granting anonymous GetObject.
func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

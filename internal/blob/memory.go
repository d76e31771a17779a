package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore keeps objects in process. It also serves them over HTTP so the
// public URLs it hands out resolve in dev mode.
type MemoryStore struct {
	mu        sync.RWMutex
	buckets   registry
	objects   map[string]map[string]memObject
	publicURL string
	now       func() time.Time
}

// NewMemory returns an empty store serving the given buckets. Buckets must be
// created with EnsureBuckets before writes succeed.
func NewMemory(publicURL string, buckets ...Bucket) *MemoryStore {
	return &MemoryStore{
		buckets:   newRegistry(buckets),
		objects:   make(map[string]map[string]memObject),
		publicURL: publicURL,
		now:       time.Now,
	}
}

// SetClock overrides the modification-time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// EnsureBuckets creates any missing bucket.
func (m *MemoryStore) EnsureBuckets(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.buckets {
		if _, ok := m.objects[name]; !ok {
			m.objects[name] = make(map[string]memObject)
		}
	}
	return nil
}

// Put stores a copy of the reader contents.
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if err := m.buckets.check(bucket, size, contentType); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("put object %s/%s: read %d bytes, expected %d", bucket, key, len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	objs, ok := m.objects[bucket]
	if !ok {
		return fmt.Errorf("put object %s/%s: bucket does not exist", bucket, key)
	}
	objs[key] = memObject{data: data, contentType: contentType, modified: m.now()}
	return nil
}

// PublicURL returns the URL under which ServeHTTP exposes the object.
func (m *MemoryStore) PublicURL(bucket, key string) string {
	return publicURL(m.publicURL, bucket, key)
}

// Get returns an object's bytes and content type.
func (m *MemoryStore) Get(bucket, key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.contentType, true
}

// List returns objects sorted by key.
func (m *MemoryStore) List(ctx context.Context, bucket string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objs, ok := m.objects[bucket]
	if !ok {
		return nil, fmt.Errorf("list %s: bucket does not exist", bucket)
	}
	out := make([]Object, 0, len(objs))
	for key, obj := range objs {
		out = append(out, Object{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes one object; deleting a missing key is not an error.
func (m *MemoryStore) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects[bucket], key)
	return nil
}

// ServeHTTP serves GET /<bucket>/<key> relative to the mount point. Mount it
// with http.StripPrefix.
func (m *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(r.URL.EscapedPath(), "/"), "/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	bucket, err1 := url.PathUnescape(bucket)
	key, err2 := url.PathUnescape(key)
	if err1 != nil || err2 != nil {
		http.NotFound(w, r)
		return
	}
	m.mu.RLock()
	obj, found := m.objects[bucket][key]
	m.mu.RUnlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", obj.contentType)
	http.ServeContent(w, r, key, obj.modified, bytes.NewReader(obj.data))
}

package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

var (
	testPDFs = Bucket{Name: "pdfs", Public: true, SizeLimit: 16, AllowedTypes: []string{"application/pdf"}}
	testSigs = Bucket{Name: "signatures", Public: true, SizeLimit: 8, AllowedTypes: []string{"image/png", "image/jpeg"}}
)

func TestBucketCheck(t *testing.T) {
	cases := []struct {
		name string
		size int64
		ct   string
		ok   bool
	}{
		{"pdf", 10, "application/pdf", true},
		{"pdf with params", 10, "application/pdf; charset=binary", true},
		{"too big", 17, "application/pdf", false},
		{"empty", 0, "application/pdf", false},
		{"wrong type", 10, "image/png", false},
	}
	for _, tc := range cases {
		err := testPDFs.Check(tc.size, tc.ct)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrRejected) {
			t.Fatalf("%s: expected rejection, got %v", tc.name, err)
		}
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("http://example.test/blobs/", testPDFs, testSigs)
	if err := m.Put(ctx, "pdfs", "a.pdf", bytes.NewReader([]byte("%PDF-1")), 6, "application/pdf"); err == nil {
		t.Fatalf("expected write before EnsureBuckets to fail")
	}
	if err := m.EnsureBuckets(ctx); err != nil {
		t.Fatalf("ensure buckets: %v", err)
	}
	if err := m.Put(ctx, "pdfs", "a b.pdf", bytes.NewReader([]byte("%PDF-1")), 6, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put(ctx, "signatures", "s.png", bytes.NewReader([]byte("123456789")), 9, "image/png"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected oversized signature to be rejected, got %v", err)
	}
	url := m.PublicURL("pdfs", "a b.pdf")
	if url != "http://example.test/blobs/pdfs/a%20b.pdf" {
		t.Fatalf("unexpected url %s", url)
	}

	srv := httptest.NewServer(http.StripPrefix("/blobs", m))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/blobs/pdfs/a%20b.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "%PDF-1" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}

	objs, err := m.List(ctx, "pdfs")
	if err != nil || len(objs) != 1 {
		t.Fatalf("list: %v %v", objs, err)
	}
	if err := m.Delete(ctx, "pdfs", "a b.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, ok := m.Get("pdfs", "a b.pdf"); ok {
		t.Fatalf("expected object to be gone")
	}
}

func TestEndpointURL(t *testing.T) {
	if got := endpointURL("localhost:9000", false); got != "http://localhost:9000" {
		t.Fatalf("unexpected %s", got)
	}
	if got := endpointURL("r2.example.com", true); got != "https://r2.example.com" {
		t.Fatalf("unexpected %s", got)
	}
	if got := endpointURL("https://s3.example.com", false); got != "https://s3.example.com" {
		t.Fatalf("unexpected %s", got)
	}
}

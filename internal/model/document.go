// Package model contains the document record and its lifecycle rules shared
// across packages.
package model

import (
	"errors"
	"fmt"
	"time"
)

// Status describes where a document is in the signing lifecycle. A named
// string type keeps statuses from mixing with arbitrary text.
type Status string

const (
	StatusUploaded Status = "Uploaded"
	StatusShared   Status = "Shared"
	StatusSigned   Status = "Signed"
)

// ErrNotFound is returned by document stores when no row matches an id.
var ErrNotFound = errors.New("document not found")

// ErrStaleStatus is returned by a conditional update when the stored status
// no longer matches the status the caller read.
var ErrStaleStatus = errors.New("document status changed concurrently")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusShared, StatusSigned:
		return true
	}
	return false
}

// Document is one uploaded PDF plus its lifecycle metadata. Nullable columns
// are pointers so JSON output and SQL scans can tell "unset" from "empty".
type Document struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        Status     `json:"status"`
	FilePath      string     `json:"file_path"`
	URL           *string    `json:"url,omitempty"`
	Size          int64      `json:"size"`
	PageCount     int        `json:"page_count"`
	SharedWith    *string    `json:"shared_with,omitempty"`
	SharedAt      *time.Time `json:"shared_at,omitempty"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	SignaturePath *string    `json:"signature_path,omitempty"`
	SignatureURL  *string    `json:"signature_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Validate checks the per-status field invariants.
func (d Document) Validate() error {
	if !d.Status.Valid() {
		return fmt.Errorf("unknown status %q", d.Status)
	}
	switch d.Status {
	case StatusShared:
		if d.SharedWith == nil || d.SharedAt == nil {
			return errors.New("shared document requires shared_with and shared_at")
		}
	case StatusSigned:
		if d.SignedAt == nil || d.SignaturePath == nil || d.SignatureURL == nil {
			return errors.New("signed document requires signed_at, signature_path and signature_url")
		}
	}
	return nil
}

// ObjectKeys lists the blob keys referenced by stored documents, grouped by
// the column they live in.
type ObjectKeys struct {
	FilePaths      map[string]struct{}
	SignaturePaths map[string]struct{}
}

// NewObjectKeys returns an ObjectKeys with both sets allocated.
func NewObjectKeys() ObjectKeys {
	return ObjectKeys{
		FilePaths:      make(map[string]struct{}),
		SignaturePaths: make(map[string]struct{}),
	}
}

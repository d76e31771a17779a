package lifecycle

import (
	"context"
	"time"

	"github.com/dharsanguruparan/VaultSign/internal/model"
)

// Display layouts follow the de-DE locale.
const (
	listLayout   = "02.01.2006, 15:04"
	signedLayout = "02.01.2006, 15:04:05"
)

// ListEntry is a dashboard row.
type ListEntry struct {
	model.Document
	CreatedDisplay string `json:"created_display"`
	SignedDisplay  string `json:"signed_display,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// List returns every document, newest first.
func (c *Controller) List(ctx context.Context) ([]ListEntry, error) {
	docs, err := c.docs.List(ctx)
	if err != nil {
		return nil, dependency("list documents", err)
	}
	out := make([]ListEntry, 0, len(docs))
	for _, doc := range docs {
		entry := ListEntry{Document: doc, CreatedDisplay: c.format(doc.CreatedAt, listLayout)}
		if doc.Status == model.StatusSigned && doc.SignedAt != nil {
			entry.SignedDisplay = c.format(*doc.SignedAt, listLayout)
			if doc.SignatureURL != nil {
				entry.Thumbnail = *doc.SignatureURL
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// SigningView is what the signing surface renders.
type SigningView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      model.Status `json:"status"`
	DocumentURL string       `json:"document_url"`
}

// SigningPage loads the document a recipient is about to sign. Signed
// documents yield ErrAlreadySigned.
func (c *Controller) SigningPage(ctx context.Context, id string) (*SigningView, error) {
	doc, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == model.StatusSigned {
		return nil, ErrAlreadySigned
	}
	return &SigningView{ID: doc.ID, Name: doc.Name, Status: doc.Status, DocumentURL: deref(doc.URL)}, nil
}

// SignedView is the read-only view of a completed document.
type SignedView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SignedBy     string    `json:"signed_by"`
	SignedAt     time.Time `json:"signed_at"`
	SignedAtText string    `json:"signed_at_display"`
	SignatureURL string    `json:"signature_url"`
	DocumentURL  string    `json:"document_url"`
}

// View returns the signed-document view. Unsigned documents yield
// ErrNotSigned.
func (c *Controller) View(ctx context.Context, id string) (*SignedView, error) {
	doc, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.StatusSigned || doc.SignedAt == nil {
		return nil, ErrNotSigned
	}
	signedBy := deref(doc.SharedWith)
	if signedBy == "" {
		signedBy = "Unknown"
	}
	return &SignedView{
		ID:           doc.ID,
		Name:         doc.Name,
		SignedBy:     signedBy,
		SignedAt:     *doc.SignedAt,
		SignedAtText: c.format(*doc.SignedAt, signedLayout),
		SignatureURL: deref(doc.SignatureURL),
		DocumentURL:  deref(doc.URL),
	}, nil
}

func (c *Controller) format(t time.Time, layout string) string {
	return t.In(c.opts.Location).Format(layout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

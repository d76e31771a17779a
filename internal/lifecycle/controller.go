// Package lifecycle moves documents through Uploaded, Shared and Signed. It
// owns every decision about when a blob is written, when an email goes out
// and when a row changes; the stores it drives are plain collaborators.
package lifecycle

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/VaultSign/internal/model"
	"github.com/dharsanguruparan/VaultSign/internal/notify"
	pdfutil "github.com/dharsanguruparan/VaultSign/internal/pdf"
	"github.com/dharsanguruparan/VaultSign/internal/signature"
)

// DocumentStore persists document rows.
type DocumentStore interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context) ([]model.Document, error)
	// Update must fail with model.ErrStaleStatus when the stored status is
	// no longer from.
	Update(ctx context.Context, doc *model.Document, from model.Status) error
}

// BlobStore persists PDFs and signature images.
type BlobStore interface {
	EnsureBuckets(ctx context.Context) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	PublicURL(bucket, key string) string
}

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Inspector validates PDF payloads.
type Inspector interface {
	Inspect(data []byte) (pdfutil.Info, error)
}

// Options configures a Controller.
type Options struct {
	BaseURL          string
	PDFBucket        string
	SignatureBucket  string
	MaxPDFSize       int64
	MaxSignatureSize int64
	// Location is used for display timestamps. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
	Log      logrus.FieldLogger
}

// Controller implements ingest, share, sign and the read views.
type Controller struct {
	docs      DocumentStore
	blobs     BlobStore
	sender    Sender
	inspector Inspector
	opts      Options
}

// New wires a Controller. Zero-valued options take the usual defaults.
func New(docs DocumentStore, blobs BlobStore, sender Sender, inspector Inspector, opts Options) *Controller {
	if opts.PDFBucket == "" {
		opts.PDFBucket = "pdfs"
	}
	if opts.SignatureBucket == "" {
		opts.SignatureBucket = "signatures"
	}
	if opts.MaxPDFSize <= 0 {
		opts.MaxPDFSize = 10 << 20
	}
	if opts.MaxSignatureSize <= 0 {
		opts.MaxSignatureSize = 5 << 20
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:3000"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Controller{docs: docs, blobs: blobs, sender: sender, inspector: inspector, opts: opts}
}

// Setup ensures the documents table and both buckets exist. It is safe to
// call repeatedly.
func (c *Controller) Setup(ctx context.Context) error {
	if err := c.docs.EnsureSchema(ctx); err != nil {
		return dependency("ensure schema", err)
	}
	if err := c.blobs.EnsureBuckets(ctx); err != nil {
		return dependency("ensure buckets", err)
	}
	return nil
}

// Upload is an incoming PDF.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Ingest stores a PDF and creates its Uploaded row. The row is inserted only
// after the blob write succeeds. PageCount is 0 when the PDF structure cannot
// be parsed.
func (c *Controller) Ingest(ctx context.Context, up Upload) (*model.Document, error) {
	if up.Body == nil {
		return nil, invalid("no file uploaded")
	}
	data, err := io.ReadAll(io.LimitReader(up.Body, c.opts.MaxPDFSize+1))
	if err != nil {
		return nil, invalid("read file: %v", err)
	}
	if len(data) == 0 {
		return nil, invalid("empty file")
	}
	if int64(len(data)) > c.opts.MaxPDFSize {
		return nil, invalid("file exceeds limit (%d bytes)", c.opts.MaxPDFSize)
	}
	if declared := baseType(up.ContentType); declared != "" && declared != "application/pdf" && declared != "application/octet-stream" {
		return nil, invalid("declared content type %s is not application/pdf", declared)
	}
	if sniffed := http.DetectContentType(data); sniffed != "application/pdf" {
		return nil, invalid("only PDF files supported (got %s)", sniffed)
	}
	now := c.opts.Now().UTC()
	name := cleanName(up.Name)
	// The %PDF sniff above is the gate. The parser only reads a subset of
	// valid files, so a failure here just leaves the page count unknown.
	info, err := c.inspector.Inspect(data)
	if err != nil {
		c.opts.Log.WithError(err).WithField("name", name).Warn("pdf structure unreadable; page count unknown")
		info = pdfutil.Info{}
	}
	key := fmt.Sprintf("%d-%s.pdf", now.UnixMilli(), uuid.NewString())
	log := c.opts.Log.WithFields(logrus.Fields{"bucket": c.opts.PDFBucket, "key": key})
	if err := c.blobs.Put(ctx, c.opts.PDFBucket, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return nil, dependency("store pdf", err)
	}
	url := c.blobs.PublicURL(c.opts.PDFBucket, key)
	doc := &model.Document{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    model.StatusUploaded,
		FilePath:  key,
		URL:       &url,
		Size:      int64(len(data)),
		PageCount: info.Pages,
		CreatedAt: now,
	}
	if err := c.docs.Create(ctx, doc); err != nil {
		log.WithError(err).Warn("pdf stored without a row; sweep will reclaim it")
		return nil, dependency("insert document", err)
	}
	log.WithField("document_id", doc.ID).Info("document uploaded")
	return doc, nil
}

// ShareRequest asks for a signing link to be emailed.
type ShareRequest struct {
	DocumentID   string
	Email        string
	DocumentName string
}

// Share emails the signing link and then marks the document Shared. A failed
// send leaves the row untouched.
func (c *Controller) Share(ctx context.Context, req ShareRequest) (*model.Document, error) {
	id := strings.TrimSpace(req.DocumentID)
	email := strings.TrimSpace(req.Email)
	if id == "" || email == "" {
		return nil, invalid("email and document id are required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, invalid("invalid email %q", email)
	}
	doc, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := model.ShareEvent{Recipient: addr.Address, At: c.opts.Now()}
	// Checked before sending so a signed document never triggers an email.
	next, err := model.Apply(ev, *doc)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.DocumentName)
	if name == "" {
		name = doc.Name
	}
	link := c.SigningLink(id)
	msg, err := notify.SigningRequest(addr.Address, name, link)
	if err != nil {
		return nil, dependency("render email", err)
	}
	log := c.opts.Log.WithField("document_id", id)
	if err := c.sender.Send(ctx, msg); err != nil {
		return nil, dependency("send signing email", err)
	}
	committed, err := c.commit(ctx, doc, &next, ev)
	if err != nil {
		log.WithError(err).Error("signing email sent but status update failed")
		return nil, err
	}
	log.WithField("recipient", addr.Address).Info("document shared")
	return committed, nil
}

// SignRequest carries a captured signature. DataURL takes precedence over
// Image when both are set.
type SignRequest struct {
	DocumentID string
	DataURL    string
	Image      []byte
}

// Sign uploads the signature image and marks the document Signed in one row
// write. Blank canvases are rejected before any network call.
func (c *Controller) Sign(ctx context.Context, req SignRequest) (*model.Document, error) {
	id := strings.TrimSpace(req.DocumentID)
	if id == "" {
		return nil, invalid("document id is required")
	}
	// Bound the encoded size before decoding.
	maxEncoded := base64.StdEncoding.EncodedLen(int(c.opts.MaxSignatureSize)) + dataURLSlack
	if len(req.DataURL) > maxEncoded || int64(len(req.Image)) > c.opts.MaxSignatureSize {
		return nil, invalid("signature exceeds limit (%d bytes)", c.opts.MaxSignatureSize)
	}
	var (
		img signature.Image
		err error
	)
	if req.DataURL != "" {
		img, err = signature.ParseDataURL(req.DataURL)
	} else {
		img, err = signature.Decode(req.Image)
	}
	switch {
	case errors.Is(err, signature.ErrEmpty):
		return nil, invalid("signature required")
	case err != nil:
		return nil, invalid("%v", err)
	}
	if int64(len(img.Data)) > c.opts.MaxSignatureSize {
		return nil, invalid("signature exceeds limit (%d bytes)", c.opts.MaxSignatureSize)
	}

	doc, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == model.StatusSigned {
		return nil, ErrAlreadySigned
	}
	now := c.opts.Now()
	key := fmt.Sprintf("signature_%s_%d_%s%s", id, now.UnixNano(), randomSuffix(), img.Extension())
	log := c.opts.Log.WithFields(logrus.Fields{"document_id": id, "bucket": c.opts.SignatureBucket, "key": key})
	if err := c.blobs.Put(ctx, c.opts.SignatureBucket, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType); err != nil {
		return nil, dependency("store signature", err)
	}
	ev := model.SignEvent{SignaturePath: key, SignatureURL: c.blobs.PublicURL(c.opts.SignatureBucket, key), At: now}
	next, err := model.Apply(ev, *doc)
	if err != nil {
		return nil, err
	}
	committed, err := c.commit(ctx, doc, &next, ev)
	if err != nil {
		log.WithError(err).Warn("signature stored but not committed; sweep will reclaim it")
		if errors.Is(err, model.ErrIllegalTransition) {
			return nil, ErrAlreadySigned
		}
		return nil, err
	}
	log.Info("document signed")
	return committed, nil
}

// commit writes next conditioned on prev's status. If another writer got
// there first the event is re-applied once to the fresh row, which rejects
// it when the document has meanwhile become Signed.
func (c *Controller) commit(ctx context.Context, prev, next *model.Document, ev model.Event) (*model.Document, error) {
	for attempt := 0; ; attempt++ {
		err := c.docs.Update(ctx, next, prev.Status)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, model.ErrStaleStatus) || attempt > 0 {
			if errors.Is(err, model.ErrStaleStatus) {
				return nil, fmt.Errorf("%w: %v", ErrIllegalTransition, err)
			}
			return nil, dependency("update document", err)
		}
		if prev, err = c.get(ctx, next.ID); err != nil {
			return nil, err
		}
		fresh, err := model.Apply(ev, *prev)
		if err != nil {
			return nil, err
		}
		next = &fresh
	}
}

// Get returns one document.
func (c *Controller) Get(ctx context.Context, id string) (*model.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("document id is required")
	}
	return c.get(ctx, id)
}

func (c *Controller) get(ctx context.Context, id string) (*model.Document, error) {
	doc, err := c.docs.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, dependency("load document", err)
	}
	return doc, nil
}

// SigningLink returns the URL a recipient opens to sign document id.
func (c *Controller) SigningLink(id string) string {
	return c.opts.BaseURL + "/sign/" + id
}

// dataURLSlack covers the "data:image/png;base64," header and whitespace.
const dataURLSlack = 64

func baseType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
}

func cleanName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "upload.pdf"
	}
	return name
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(buf)
}

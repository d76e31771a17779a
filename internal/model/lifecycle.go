package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrIllegalTransition is returned by Apply when the event is not allowed
	// from the document's current status.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrInvalidEvent is returned by Apply when the event lacks required data.
	ErrInvalidEvent = errors.New("invalid lifecycle event")
)

// Event is something that moves a document to a new status. The unexported
// method closes the set to the events declared in this file.
type Event interface {
	Target() Status
	apply(doc *Document) error
}

// ShareEvent records that the signing link was delivered to Recipient.
type ShareEvent struct {
	Recipient string
	At        time.Time
}

// Target implements Event.
func (ShareEvent) Target() Status { return StatusShared }

func (e ShareEvent) apply(doc *Document) error {
	recipient := strings.TrimSpace(e.Recipient)
	if recipient == "" || e.At.IsZero() {
		return fmt.Errorf("%w: share needs recipient and time", ErrInvalidEvent)
	}
	at := e.At.UTC()
	doc.SharedWith = &recipient
	doc.SharedAt = &at
	return nil
}

// SignEvent records a stored signature image for the document.
type SignEvent struct {
	SignaturePath string
	SignatureURL  string
	At            time.Time
}

// Target implements Event.
func (SignEvent) Target() Status { return StatusSigned }

func (e SignEvent) apply(doc *Document) error {
	if e.SignaturePath == "" || e.SignatureURL == "" || e.At.IsZero() {
		return fmt.Errorf("%w: sign needs signature path, url and time", ErrInvalidEvent)
	}
	path, url, at := e.SignaturePath, e.SignatureURL, e.At.UTC()
	doc.SignaturePath = &path
	doc.SignatureURL = &url
	doc.SignedAt = &at
	return nil
}

// transitions lists, per target status, the statuses it may be entered from.
// Shared to Shared is a re-share and overwrites the recipient.
var transitions = map[Status][]Status{
	StatusShared: {StatusUploaded, StatusShared},
	StatusSigned: {StatusUploaded, StatusShared},
}

// CanApply reports whether ev is legal from status from.
func CanApply(ev Event, from Status) bool {
	for _, allowed := range transitions[ev.Target()] {
		if allowed == from {
			return true
		}
	}
	return false
}

// Apply returns a copy of doc with ev applied. doc itself is never modified,
// so callers can keep the prior status for a conditional write.
func Apply(ev Event, doc Document) (Document, error) {
	if !CanApply(ev, doc.Status) {
		return doc, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, doc.Status, ev.Target())
	}
	next := doc
	if err := ev.apply(&next); err != nil {
		return doc, err
	}
	next.Status = ev.Target()
	if err := next.Validate(); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return next, nil
}

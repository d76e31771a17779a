package model

import (
	"errors"
	"testing"
	"time"
)

func TestApplyTransitions(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	share := ShareEvent{Recipient: "alice@example.com", At: at}
	sign := SignEvent{SignaturePath: "sig.png", SignatureURL: "http://blob/sig.png", At: at}

	cases := []struct {
		name    string
		from    Status
		ev      Event
		want    Status
		wantErr error
	}{
		{"share uploaded", StatusUploaded, share, StatusShared, nil},
		{"reshare shared", StatusShared, share, StatusShared, nil},
		{"share signed", StatusSigned, share, StatusSigned, ErrIllegalTransition},
		{"sign shared", StatusShared, sign, StatusSigned, nil},
		{"sign uploaded", StatusUploaded, sign, StatusSigned, nil},
		{"sign signed", StatusSigned, sign, StatusSigned, ErrIllegalTransition},
		{"share without recipient", StatusUploaded, ShareEvent{At: at}, StatusUploaded, ErrInvalidEvent},
		{"sign without url", StatusShared, SignEvent{SignaturePath: "sig.png", At: at}, StatusShared, ErrInvalidEvent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := signedOrNot(tc.from, at)
			got, err := Apply(tc.ev, doc)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if got.Status != tc.from {
					t.Fatalf("status changed on failure: %s", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}
			if err := got.Validate(); err != nil {
				t.Fatalf("result violates invariants: %v", err)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	doc := Document{ID: "d1", Status: StatusUploaded}
	at := time.Now()
	next, err := Apply(ShareEvent{Recipient: "bob@example.com", At: at}, doc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if doc.Status != StatusUploaded || doc.SharedWith != nil {
		t.Fatalf("input document was modified: %+v", doc)
	}
	if *next.SharedWith != "bob@example.com" {
		t.Fatalf("unexpected recipient %q", *next.SharedWith)
	}
}

func TestValidate(t *testing.T) {
	if err := (Document{Status: "Archived"}).Validate(); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
	if err := (Document{Status: StatusShared}).Validate(); err == nil {
		t.Fatalf("expected shared without recipient to fail")
	}
	if err := (Document{Status: StatusSigned}).Validate(); err == nil {
		t.Fatalf("expected signed without signature to fail")
	}
}

func signedOrNot(status Status, at time.Time) Document {
	doc := Document{ID: "doc-1", Name: "contract.pdf", Status: StatusUploaded, FilePath: "a.pdf"}
	if status == StatusUploaded {
		return doc
	}
	doc, _ = Apply(ShareEvent{Recipient: "first@example.com", At: at}, doc)
	if status == StatusShared {
		return doc
	}
	doc, _ = Apply(SignEvent{SignaturePath: "old.png", SignatureURL: "http://blob/old.png", At: at}, doc)
	return doc
}

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dharsanguruparan/VaultSign/internal/model"
)

func TestMemoryStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3"} {
		doc := &model.Document{ID: id, Status: model.StatusUploaded, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Create(ctx, doc); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, d := range docs {
		got = append(got, d.ID)
	}
	if len(got) != 3 || got[0] != "t3" || got[1] != "t2" || got[2] != "t1" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestMemoryStoreConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := &model.Document{ID: "d1", Name: "a.pdf", Status: model.StatusUploaded, FilePath: "a.pdf"}
	if err := s.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	next, err := model.Apply(model.ShareEvent{Recipient: "a@example.com", At: time.Now()}, *doc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.Update(ctx, &next, model.StatusUploaded); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Update(ctx, &next, model.StatusUploaded); !errors.Is(err, model.ErrStaleStatus) {
		t.Fatalf("expected stale status, got %v", err)
	}
	missing := next
	missing.ID = "nope"
	if err := s.Update(ctx, &missing, model.StatusUploaded); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	got, err := s.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusShared || *got.SharedWith != "a@example.com" {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestMemoryStoreRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := &model.Document{ID: "d1", Status: model.StatusUploaded}
	if err := s.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, doc); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/VaultSign/internal/database"
	"github.com/dharsanguruparan/VaultSign/internal/model"
)

// DocumentRepository wraps all SQL touching the documents table.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

const documentColumns = `id, name, status, file_path, url, size, page_count, shared_with, shared_at,
	signed_at, signature_path, signature_url, created_at`

// EnsureSchema creates the documents table when missing.
func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	return database.EnsureSchema(ctx, r.pool)
}

// Create inserts a freshly ingested document.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, doc.ID, doc.Name, doc.Status, doc.FilePath, doc.URL, doc.Size, doc.PageCount, doc.SharedWith, doc.SharedAt,
		doc.SignedAt, doc.SignaturePath, doc.SignatureURL, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Get returns a document by id.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// List returns every document, newest first.
func (r *DocumentRepository) List(ctx context.Context) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Update writes the lifecycle columns of doc, but only while the stored
// status still equals from. A lost race yields model.ErrStaleStatus.
func (r *DocumentRepository) Update(ctx context.Context, doc *model.Document, from model.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE documents
		SET status=$1,
			shared_with=$2,
			shared_at=$3,
			signed_at=$4,
			signature_path=$5,
			signature_url=$6
		WHERE id=$7 AND status=$8
	`, doc.Status, doc.SharedWith, doc.SharedAt, doc.SignedAt, doc.SignaturePath, doc.SignatureURL, doc.ID, from)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id=$1)`, doc.ID).Scan(&exists); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", model.ErrNotFound, doc.ID)
	}
	return fmt.Errorf("%w: %s", model.ErrStaleStatus, doc.ID)
}

// ObjectKeys returns every blob key the table references.
func (r *DocumentRepository) ObjectKeys(ctx context.Context) (model.ObjectKeys, error) {
	keys := model.NewObjectKeys()
	rows, err := r.pool.Query(ctx, `SELECT file_path, signature_path FROM documents`)
	if err != nil {
		return keys, fmt.Errorf("select object keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			filePath string
			sigPath  *string
		)
		if err := rows.Scan(&filePath, &sigPath); err != nil {
			return keys, fmt.Errorf("scan object keys: %w", err)
		}
		keys.FilePaths[filePath] = struct{}{}
		if sigPath != nil {
			keys.SignaturePaths[*sigPath] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return keys, fmt.Errorf("select object keys: %w", err)
	}
	return keys, nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Status, &doc.FilePath, &doc.URL, &doc.Size, &doc.PageCount,
		&doc.SharedWith, &doc.SharedAt, &doc.SignedAt, &doc.SignaturePath, &doc.SignatureURL, &doc.CreatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

func newCatalogWithMock(t *testing.T) (*Catalog, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &Catalog{db: db}, mock, func() { _ = db.Close() }
}

func TestRecordDocumentUpserts(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	doc := domain.Document{
		ID:         "doc-1",
		SourcePath: "/data/guide.pdf",
		Extension:  ".pdf",
	}

	mock.ExpectExec("INSERT INTO ingested_documents").
		WithArgs("doc-1", "/data/guide.pdf", ".pdf", 12, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := catalog.RecordDocument(context.Background(), doc, 12, 2); err != nil {
		t.Fatalf("RecordDocument() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordDocumentWrapsExecError(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO ingested_documents").
		WillReturnError(errors.New("connection refused"))

	err := catalog.RecordDocument(context.Background(), domain.Document{ID: "doc-1"}, 1, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkFailedUpsertsUnrecordedDocument(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	doc := domain.Document{
		ID:         "doc-1",
		SourcePath: "/data/guide.pdf",
		Extension:  ".pdf",
	}

	mock.ExpectExec("INSERT INTO ingested_documents").
		WithArgs("doc-1", "/data/guide.pdf", ".pdf", "embedding dimension mismatch", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := catalog.MarkFailed(context.Background(), doc, "embedding dimension mismatch"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

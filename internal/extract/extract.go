package extract

import (
	"context"
	"fmt"
)

// Backend family names. They double as the relational table-name prefixes,
// so downstream rows stay independently queryable per backend.
const (
	BackendLocal = "pymupdf"
	BackendAzure = "azure"
	BackendAdobe = "adobe"
)

// TableData is a table serialized as rows of cells. The first row is
// treated as the header when rendered to CSV.
type TableData [][]string

// ImageData is one extracted raster image with its native file extension.
type ImageData struct {
	Ext  string
	Data []byte
}

// PageResult is the normalized extraction output for one page.
type PageResult struct {
	PageNumber int
	Text       string
	Tables     []TableData
	Images     []ImageData
}

// ContainerMeta carries document-level metadata. The local backend reads it
// from the opened PDF; cloud backends synthesize equivalent fields from
// their own document-level responses.
type ContainerMeta struct {
	Title      string
	Author     string
	Creator    string
	Format     string
	Encryption string
	PageCount  int
}

// Result is the common output shape produced by every backend. Pages are
// ordered by page number; a page that failed extraction entirely is omitted
// rather than zero-filled.
type Result struct {
	Meta  ContainerMeta
	Pages []PageResult
}

// Backend extracts normalized content from raw PDF bytes. Implementations
// translate their own error taxonomy into *ExtractionFailure at this
// boundary; the pipeline downstream never sees provider-specific errors.
type Backend interface {
	Name() string
	Extract(ctx context.Context, documentID string, pdf []byte) (*Result, error)
}

// ExtractionFailure is the single failure type all backends report.
type ExtractionFailure struct {
	Backend    string
	DocumentID string
	Err        error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("%s: extracting %s: %v", e.Backend, e.DocumentID, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}

func failure(backend, documentID string, err error) *ExtractionFailure {
	return &ExtractionFailure{Backend: backend, DocumentID: documentID, Err: err}
}

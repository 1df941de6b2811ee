package dbstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/layout"
)

// Loader writes one backend family's rows over a single connection held for
// the duration of one document load. Every insert is committed on its own,
// so a failure mid-document leaves the rows already written in place.
type Loader struct {
	conn   *pgx.Conn
	prefix string
	log    zerolog.Logger
}

// NewLoader opens a connection for loading one document into the given
// backend family's tables. Close it when the document is done.
func (s *Store) NewLoader(ctx context.Context, backend string) (*Loader, error) {
	conn, err := s.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &Loader{conn: conn, prefix: backend, log: s.log}, nil
}

func (l *Loader) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}

// LoadDocument inserts the document row and returns its key. Reruns insert
// a fresh row; file_name is not unique.
func (l *Loader) LoadDocument(ctx context.Context, fileName string, md *layout.Metadata) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s_info (file_name, title, format, creator, author, encryption,
			number_of_pages, number_of_words, number_of_images, number_of_tables)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING pdf_id`, l.prefix)

	var pdfID int64
	err := l.conn.QueryRow(ctx, query,
		fileName, md.Title, md.Format, md.Creator, md.Author, md.Encryption,
		md.NumberOfPages, md.NumberOfWords, md.NumberOfImages, md.NumberOfTables,
	).Scan(&pdfID)
	if err != nil {
		return 0, fmt.Errorf("insert document %s: %w", fileName, err)
	}
	return pdfID, nil
}

// LoadPage inserts one page row under an existing document row and returns
// the page row's key, which attachment mappings reference.
func (l *Loader) LoadPage(ctx context.Context, pdfID int64, pageNumber int, text string) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s_page_info (page_id, pdf_id, text)
		VALUES ($1, $2, $3)
		RETURNING info_id`, l.prefix)

	var infoID int64
	if err := l.conn.QueryRow(ctx, query, pageNumber, pdfID, text).Scan(&infoID); err != nil {
		return 0, fmt.Errorf("insert page %d: %w", pageNumber, err)
	}
	return infoID, nil
}

// LoadAttachment inserts a table or image artifact row with its storage
// locator and returns its key.
func (l *Loader) LoadAttachment(ctx context.Context, name, storageURL string) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s_attachments (attachment_name, attachment_url)
		VALUES ($1, $2)
		RETURNING attachment_id`, l.prefix)

	var attachmentID int64
	if err := l.conn.QueryRow(ctx, query, name, storageURL).Scan(&attachmentID); err != nil {
		return 0, fmt.Errorf("insert attachment %s: %w", name, err)
	}
	return attachmentID, nil
}

// LinkAttachment joins a document, page and attachment row. All three
// referenced rows must already be committed; the foreign keys reject a
// mapping for a missing parent.
func (l *Loader) LinkAttachment(ctx context.Context, pdfID, pageInfoID, attachmentID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s_attachment_mapping (pdf_id, page_id, attachment_id)
		VALUES ($1, $2, $3)`, l.prefix)

	if _, err := l.conn.Exec(ctx, query, pdfID, pageInfoID, attachmentID); err != nil {
		return fmt.Errorf("link attachment %d to page %d: %w", attachmentID, pageInfoID, err)
	}
	return nil
}

// PageText returns the concatenated page text of the most recently loaded
// document row with the given file name, in page order.
func (s *Store) PageText(ctx context.Context, backend, fileName string) (string, error) {
	query := fmt.Sprintf(`
		SELECT p.text
		FROM %s_page_info p
		JOIN %s_info i ON p.pdf_id = i.pdf_id
		WHERE i.file_name = $1
		  AND i.pdf_id = (SELECT max(pdf_id) FROM %s_info WHERE file_name = $1)
		ORDER BY p.page_id`, backend, backend, backend)

	var text string
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, fileName)
		if err != nil {
			return fmt.Errorf("query page text: %w", err)
		}
		defer rows.Close()

		found := false
		for rows.Next() {
			var page string
			if err := rows.Scan(&page); err != nil {
				return fmt.Errorf("scan page text: %w", err)
			}
			if found {
				text += " "
			}
			text += page
			found = true
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: no pages for %s in %s family", ErrNotFound, fileName, backend)
		}
		return nil
	})
	return text, err
}

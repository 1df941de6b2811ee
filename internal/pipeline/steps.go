package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/bigdataia/gaia-etl/internal/extract"
	"github.com/bigdataia/gaia-etl/internal/layout"
)

// Step is a single stage of processing one document.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all steps for one document.
type State struct {
	Split          string
	RemotePath     string
	DocumentID     string
	PDFBytes       []byte
	Result         *extract.Result
	Written        *layout.WrittenLayout
	Metadata       *layout.Metadata
	AttachmentURLs map[string]string
}

// Step 1: DownloadStep fetches the source PDF and mirrors its raw bytes
// into the bucket's files tree.
type DownloadStep struct{ p *Pipeline }

func (s *DownloadStep) Execute(ctx context.Context, state *State) error {
	data, err := s.p.source.Download(ctx, s.p.repo, state.RemotePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", state.RemotePath, err)
	}
	state.PDFBytes = data

	key := path.Join(s.p.filesPath, state.RemotePath)
	if err := s.p.blobs.Upload(ctx, key, data); err != nil {
		return fmt.Errorf("mirror %s: %w", state.RemotePath, err)
	}
	return nil
}

// Step 2: ExtractStep runs the selected backend over the PDF bytes.
type ExtractStep struct{ p *Pipeline }

func (s *ExtractStep) Execute(ctx context.Context, state *State) error {
	result, err := s.p.backend.Extract(ctx, state.DocumentID, state.PDFBytes)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

// Step 3: LayoutStep writes the per-page JSON, CSV and image tree.
type LayoutStep struct{ p *Pipeline }

func (s *LayoutStep) Execute(ctx context.Context, state *State) error {
	written, err := s.p.writer.Write(state.DocumentID, state.Result)
	if err != nil {
		return err
	}
	state.Written = written
	return nil
}

// Step 4: AggregateStep computes and writes the document metadata.
type AggregateStep struct{ p *Pipeline }

func (s *AggregateStep) Execute(ctx context.Context, state *State) error {
	md, err := s.p.aggregator.Aggregate(state.DocumentID, state.Result.Meta)
	if err != nil {
		return err
	}
	state.Metadata = md
	return nil
}

// Step 5: UploadStep copies the written layout tree into the bucket and
// remembers each attachment's storage locator for the loader.
type UploadStep struct{ p *Pipeline }

func (s *UploadStep) Execute(ctx context.Context, state *State) error {
	state.AttachmentURLs = make(map[string]string)

	upload := func(localPath string) (string, error) {
		rel, err := filepath.Rel(state.Written.Dir, localPath)
		if err != nil {
			return "", err
		}
		key := path.Join(s.p.extractPath, s.p.backend.Name(), state.DocumentID, filepath.ToSlash(rel))
		if err := s.p.blobs.UploadFile(ctx, key, localPath); err != nil {
			return "", fmt.Errorf("upload %s: %w", key, err)
		}
		return "/" + s.p.blobs.Bucket() + "/" + key, nil
	}

	for _, page := range state.Written.Pages {
		if _, err := upload(page.JSONPath); err != nil {
			return err
		}
		for _, attachment := range append(append([]string{}, page.TablePaths...), page.ImagePaths...) {
			url, err := upload(attachment)
			if err != nil {
				return err
			}
			state.AttachmentURLs[attachment] = url
		}
	}

	if _, err := upload(filepath.Join(state.Written.Dir, "metadata.json")); err != nil {
		return err
	}
	return nil
}

// Step 6: LoadStep fans the document out into the backend family's tables.
// Document first, then each page, then that page's attachments and their
// mappings, honoring the insert ordering the foreign keys demand.
type LoadStep struct{ p *Pipeline }

func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	loader, err := s.p.store.NewDocumentLoader(ctx, s.p.backend.Name())
	if err != nil {
		return err
	}
	defer loader.Close(ctx)

	pdfID, err := loader.LoadDocument(ctx, state.DocumentID, state.Metadata)
	if err != nil {
		return err
	}

	for i, page := range state.Written.Pages {
		infoID, err := loader.LoadPage(ctx, pdfID, page.PageNumber, state.Result.Pages[i].Text)
		if err != nil {
			return err
		}

		for _, attachment := range append(append([]string{}, page.TablePaths...), page.ImagePaths...) {
			attachmentID, err := loader.LoadAttachment(ctx, filepath.Base(attachment), state.AttachmentURLs[attachment])
			if err != nil {
				return err
			}
			if err := loader.LinkAttachment(ctx, pdfID, infoID, attachmentID); err != nil {
				return err
			}
		}
	}
	return nil
}

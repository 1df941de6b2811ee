package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/config"
	"github.com/bigdataia/gaia-etl/internal/dbstore"
	"github.com/bigdataia/gaia-etl/internal/extract"
	"github.com/bigdataia/gaia-etl/internal/gcs"
	"github.com/bigdataia/gaia-etl/internal/hub"
	"github.com/bigdataia/gaia-etl/internal/layout"
)

// Source lists and fetches files from the dataset host.
type Source interface {
	List(ctx context.Context, repo hub.Repository, splitPrefix string) ([]string, error)
	Download(ctx context.Context, repo hub.Repository, filePath string) ([]byte, error)
}

// BlobStore is the slice of the object store the pipeline writes through.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	UploadFile(ctx context.Context, key, localPath string) error
	PathIndex(ctx context.Context, prefix string) (map[string]string, error)
	Bucket() string
}

// DocumentLoader writes one document's rows; see dbstore.Loader.
type DocumentLoader interface {
	LoadDocument(ctx context.Context, fileName string, md *layout.Metadata) (int64, error)
	LoadPage(ctx context.Context, pdfID int64, pageNumber int, text string) (int64, error)
	LoadAttachment(ctx context.Context, name, storageURL string) (int64, error)
	LinkAttachment(ctx context.Context, pdfID, pageInfoID, attachmentID int64) error
	Close(ctx context.Context) error
}

// RelationalStore is the slice of the relational store the pipeline loads
// into.
type RelationalStore interface {
	NewDocumentLoader(ctx context.Context, backend string) (DocumentLoader, error)
	InsertFeatures(ctx context.Context, features []dbstore.Feature) error
	InsertAnnotations(ctx context.Context, annotations []dbstore.Annotation) error
}

// StoreAdapter lets *dbstore.Store satisfy RelationalStore.
type StoreAdapter struct {
	*dbstore.Store
}

func (a StoreAdapter) NewDocumentLoader(ctx context.Context, backend string) (DocumentLoader, error) {
	return a.Store.NewLoader(ctx, backend)
}

// Options wires the pipeline's collaborators.
type Options struct {
	Source      Source
	Blobs       BlobStore
	Backend     extract.Backend
	Store       RelationalStore
	Repo        hub.Repository
	FilesPath   string
	ExtractPath string
	LocalRoot   string
}

// Pipeline runs the ingestion flow for one extraction backend: list the
// split's files, then per document download, extract, write the layout,
// aggregate metadata, upload and load. Documents run sequentially; a failed
// document is logged and skipped.
type Pipeline struct {
	source      Source
	blobs       BlobStore
	backend     extract.Backend
	store       RelationalStore
	repo        hub.Repository
	filesPath   string
	extractPath string
	writer      *layout.Writer
	aggregator  *layout.Aggregator
	log         zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		source:      opts.Source,
		blobs:       opts.Blobs,
		backend:     opts.Backend,
		store:       opts.Store,
		repo:        opts.Repo,
		filesPath:   opts.FilesPath,
		extractPath: opts.ExtractPath,
		writer:      layout.NewWriter(opts.LocalRoot, log),
		aggregator:  layout.NewAggregator(opts.LocalRoot, log),
		log:         log,
	}
}

// SelectBackend builds the configured extraction backend.
func SelectBackend(cfg *config.Config, log zerolog.Logger) (extract.Backend, error) {
	switch cfg.ExtractionService {
	case extract.BackendLocal:
		return extract.NewLocalBackend(log), nil
	case extract.BackendAzure:
		return extract.NewAzureBackend(cfg.Azure.Endpoint, cfg.Azure.Key, log), nil
	case extract.BackendAdobe:
		return extract.NewAdobeBackend(cfg.Adobe.ClientID, cfg.Adobe.ClientSecret, log), nil
	default:
		return nil, fmt.Errorf("unknown extraction service %q", cfg.ExtractionService)
	}
}

// Run processes every PDF of one dataset split. An empty listing is a
// warning, not an error; the run simply ends.
func (p *Pipeline) Run(ctx context.Context, split, splitPrefix string) error {
	paths, err := p.source.List(ctx, p.repo, splitPrefix)
	if err != nil {
		return fmt.Errorf("list %s split: %w", split, err)
	}
	if len(paths) == 0 {
		p.log.Warn().Str("split", split).Msg("No files in split, nothing to do")
		return nil
	}

	processed, failed := 0, 0
	for _, remotePath := range paths {
		if !strings.HasSuffix(strings.ToLower(remotePath), ".pdf") {
			continue
		}
		state := &State{
			Split:      split,
			RemotePath: remotePath,
			DocumentID: documentID(remotePath),
		}
		if err := p.process(ctx, state); err != nil {
			p.log.Error().Err(err).
				Str("document", state.DocumentID).
				Str("backend", p.backend.Name()).
				Msg("Document failed, continuing with the next one")
			failed++
			continue
		}
		processed++
	}

	p.log.Info().
		Str("split", split).
		Int("processed", processed).
		Int("failed", failed).
		Msg("Split run complete")
	return nil
}

func (p *Pipeline) process(ctx context.Context, state *State) error {
	for _, step := range p.steps() {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) steps() []Step {
	return []Step{
		&DownloadStep{p},
		&ExtractStep{p},
		&LayoutStep{p},
		&AggregateStep{p},
		&UploadStep{p},
		&LoadStep{p},
	}
}

// documentID strips the split directory and the extension from a remote
// path: "test/a.pdf" becomes "a".
func documentID(remotePath string) string {
	base := path.Base(remotePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

var _ Source = (*hub.Client)(nil)
var _ BlobStore = (*gcs.Client)(nil)

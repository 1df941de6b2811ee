package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/annotations"
	"github.com/bigdataia/gaia-etl/internal/hub"
)

// AnnotationsJob is the independent branch that turns a split's JSON-lines
// annotation file into cleaned CSV rows and the gaia_features and
// gaia_annotations tables.
type AnnotationsJob struct {
	source           Source
	blobs            BlobStore
	store            RelationalStore
	repo             hub.Repository
	filesPath        string
	csvPath          string
	metadataFilename string
	workDir          string
	log              zerolog.Logger
}

// AnnotationsOptions wires the job's collaborators.
type AnnotationsOptions struct {
	Source           Source
	Blobs            BlobStore
	Store            RelationalStore
	Repo             hub.Repository
	FilesPath        string
	CSVPath          string
	MetadataFilename string
	WorkDir          string
}

func NewAnnotationsJob(opts AnnotationsOptions, log zerolog.Logger) *AnnotationsJob {
	return &AnnotationsJob{
		source:           opts.Source,
		blobs:            opts.Blobs,
		store:            opts.Store,
		repo:             opts.Repo,
		filesPath:        opts.FilesPath,
		csvPath:          opts.CSVPath,
		metadataFilename: opts.MetadataFilename,
		workDir:          opts.WorkDir,
		log:              log,
	}
}

// Run processes one dataset split: fetch the annotation file, clean it,
// write and mirror the CSV, then resolve file paths against the bucket and
// load the feature and annotation rows. A row whose annotator metadata does
// not parse aborts the load.
func (j *AnnotationsJob) Run(ctx context.Context, split, splitPrefix string) error {
	if err := os.MkdirAll(j.workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	remotePath := path.Join(splitPrefix, j.metadataFilename)
	data, err := j.source.Download(ctx, j.repo, remotePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", remotePath, err)
	}

	jsonlPath := filepath.Join(j.workDir, split+"_"+j.metadataFilename)
	if err := os.WriteFile(jsonlPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonlPath, err)
	}

	records, err := annotations.ParseAnnotations(jsonlPath, j.log)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		j.log.Warn().Str("split", split).Msg("Annotation file has no usable lines")
		return nil
	}

	csvLocal := filepath.Join(j.workDir, split+".csv")
	if err := annotations.WriteCSV(records, csvLocal); err != nil {
		return err
	}
	csvKey := path.Join(j.csvPath, split+".csv")
	if err := j.blobs.UploadFile(ctx, csvKey, csvLocal); err != nil {
		return fmt.Errorf("upload %s: %w", csvKey, err)
	}

	index, err := j.blobs.PathIndex(ctx, path.Join(j.filesPath, splitPrefix))
	if err != nil {
		return fmt.Errorf("index split files: %w", err)
	}

	rows, err := annotations.ReadCSV(csvLocal)
	if err != nil {
		return err
	}
	features, annots, err := annotations.FormatRows(rows, index, split)
	if err != nil {
		return err
	}

	if err := j.store.InsertFeatures(ctx, features); err != nil {
		return err
	}
	if err := j.store.InsertAnnotations(ctx, annots); err != nil {
		return err
	}

	j.log.Info().
		Str("split", split).
		Int("tasks", len(features)).
		Msg("Annotations loaded")
	return nil
}

package main

import (
	"context"
	"flag"

	"github.com/bigdataia/gaia-etl/internal/config"
	"github.com/bigdataia/gaia-etl/internal/dbstore"
	"github.com/bigdataia/gaia-etl/internal/gcs"
	"github.com/bigdataia/gaia-etl/internal/hub"
	"github.com/bigdataia/gaia-etl/internal/logger"
	"github.com/bigdataia/gaia-etl/internal/pipeline"
)

func main() {
	var (
		split       = flag.String("split", "test", "Dataset split to process: test, validation or all")
		annotations = flag.Bool("annotations", false, "Run the annotations branch instead of extraction")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.AppEnv, cfg.Logging.PipelineLogFile)

	if err := cfg.ValidatePipeline(); err != nil {
		log.Fatal().Err(err).Msg("Configuration incomplete")
	}

	ctx := logger.WithContext(context.Background(), log)

	source := hub.NewClient(cfg.Hub.AccessToken, log)
	repo := hub.Repository{ID: cfg.Hub.RepositoryID, Type: cfg.Hub.RepositoryType}

	blobs, err := gcs.NewClient(ctx, cfg.Storage.BucketName, cfg.Storage.CredentialsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store client")
	}
	defer blobs.Close()

	store := pipeline.StoreAdapter{Store: dbstore.New(cfg.Database, log)}

	splits := map[string]string{}
	switch *split {
	case "test":
		splits["test"] = cfg.Hub.TestPrefix
	case "validation":
		splits["validation"] = cfg.Hub.ValidationPrefix
	case "all":
		splits["test"] = cfg.Hub.TestPrefix
		splits["validation"] = cfg.Hub.ValidationPrefix
	default:
		log.Fatal().Str("split", *split).Msg("Unknown split")
	}

	if *annotations {
		job := pipeline.NewAnnotationsJob(pipeline.AnnotationsOptions{
			Source:           source,
			Blobs:            blobs,
			Store:            store,
			Repo:             repo,
			FilesPath:        cfg.Storage.FilesPath,
			CSVPath:          cfg.Storage.CSVPath,
			MetadataFilename: cfg.Hub.MetadataFilename,
			WorkDir:          cfg.Paths.DownloadDir,
		}, log)
		for name, prefix := range splits {
			if err := job.Run(ctx, name, prefix); err != nil {
				log.Fatal().Err(err).Str("split", name).Msg("Annotations run failed")
			}
		}
		return
	}

	backend, err := pipeline.SelectBackend(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to select extraction backend")
	}
	log.Info().Str("backend", backend.Name()).Msg("Starting extraction run")

	p := pipeline.New(pipeline.Options{
		Source:      source,
		Blobs:       blobs,
		Backend:     backend,
		Store:       store,
		Repo:        repo,
		FilesPath:   cfg.Storage.FilesPath,
		ExtractPath: cfg.Storage.ExtractPath,
		LocalRoot:   cfg.Paths.ExtractDir,
	}, log)

	for name, prefix := range splits {
		if err := p.Run(ctx, name, prefix); err != nil {
			log.Fatal().Err(err).Str("split", name).Msg("Extraction run failed")
		}
	}
}

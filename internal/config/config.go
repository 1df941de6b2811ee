package config

import (
	"fmt"
	"os"
)

// Config holds all pipeline and service configuration, loaded from the
// environment once at process start and passed to components explicitly.
type Config struct {
	AppEnv            string
	ExtractionService string
	Hub               HubConfig
	Storage           StorageConfig
	Azure             AzureConfig
	Adobe             AdobeConfig
	Database          DatabaseConfig
	Eval              EvalConfig
	Paths             PathConfig
	Logging           LoggingConfig
}

// HubConfig identifies the dataset repository the benchmark files come from.
type HubConfig struct {
	AccessToken      string
	RepositoryID     string
	RepositoryType   string
	TestPrefix       string
	ValidationPrefix string
	MetadataFilename string
}

// StorageConfig identifies the object-store bucket and its credentials.
type StorageConfig struct {
	BucketName      string
	CredentialsPath string
	FilesPath       string
	ExtractPath     string
	CSVPath         string
}

// AzureConfig holds the layout-aware document analysis endpoint.
type AzureConfig struct {
	Endpoint string
	Key      string
}

// AdobeConfig holds the structure-export service credentials.
type AdobeConfig struct {
	ClientID     string
	ClientSecret string
}

// DatabaseConfig holds the relational store connection values.
type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
}

// EvalConfig holds the evaluation service settings.
type EvalConfig struct {
	Addr      string
	JWTSecret string
	Model     string
}

// PathConfig holds local working directories.
type PathConfig struct {
	DownloadDir string
	ExtractDir  string
}

// LoggingConfig holds per-stage log file locations.
type LoggingConfig struct {
	PipelineLogFile string
	EvalLogFile     string
}

// Load reads the configuration from the environment. Missing required
// values are a fatal condition reported before any I/O happens.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		ExtractionService: getEnv("EXTRACTION_SERVICE", "pymupdf"),
		Hub: HubConfig{
			AccessToken:      os.Getenv("HUGGINGFACE_TOKEN"),
			RepositoryID:     os.Getenv("REPO_ID"),
			RepositoryType:   getEnv("REPO_TYPE", "dataset"),
			TestPrefix:       getEnv("TEST_FILE_PATH", "2023/test"),
			ValidationPrefix: getEnv("VALIDATION_FILE_PATH", "2023/validation"),
			MetadataFilename: getEnv("METADATA_FILENAME", "metadata.jsonl"),
		},
		Storage: StorageConfig{
			BucketName:      os.Getenv("BUCKET_NAME"),
			CredentialsPath: os.Getenv("GCS_CREDENTIALS_PATH"),
			FilesPath:       getEnv("GCP_FILES_PATH", "files"),
			ExtractPath:     getEnv("BUCKET_STORAGE_DIR", "extracted_contents"),
			CSVPath:         getEnv("GCP_CSV_PATH", "csv_files/"),
		},
		Azure: AzureConfig{
			Endpoint: os.Getenv("AZURE_ENDPOINT"),
			Key:      os.Getenv("AZURE_KEY"),
		},
		Adobe: AdobeConfig{
			ClientID:     os.Getenv("ADOBE_CLIENT_ID"),
			ClientSecret: os.Getenv("ADOBE_CLIENT_SECRET"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "gaia"),
		},
		Eval: EvalConfig{
			Addr:      getEnv("EVAL_ADDR", ":8000"),
			JWTSecret: os.Getenv("JWT_SECRET"),
			Model:     getEnv("EVAL_MODEL", "gemini-2.0-flash"),
		},
		Paths: PathConfig{
			DownloadDir: getEnv("DOWNLOAD_DIR", "downloaded_pdfs"),
			ExtractDir:  getEnv("EXTRACT_DIR", "extracted_contents"),
		},
		Logging: LoggingConfig{
			PipelineLogFile: getEnv("PIPELINE_LOG_FILE", "pipeline.log"),
			EvalLogFile:     getEnv("EVAL_LOG_FILE", "eval.log"),
		},
	}

	return cfg, nil
}

// ValidatePipeline checks the values the extraction pipeline cannot run without.
func (c *Config) ValidatePipeline() error {
	required := map[string]string{
		"HUGGINGFACE_TOKEN":    c.Hub.AccessToken,
		"REPO_ID":              c.Hub.RepositoryID,
		"BUCKET_NAME":          c.Storage.BucketName,
		"GCS_CREDENTIALS_PATH": c.Storage.CredentialsPath,
		"DB_USER":              c.Database.User,
		"DB_PASSWORD":          c.Database.Password,
	}
	return checkRequired(required)
}

// ValidateEval checks the values the evaluation service cannot run without.
func (c *Config) ValidateEval() error {
	required := map[string]string{
		"DB_USER":     c.Database.User,
		"DB_PASSWORD": c.Database.Password,
		"JWT_SECRET":  c.Eval.JWTSecret,
	}
	return checkRequired(required)
}

func checkRequired(required map[string]string) error {
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

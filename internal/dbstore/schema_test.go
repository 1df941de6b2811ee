package dbstore

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/bigdataia/gaia-etl/internal/config"
	"github.com/bigdataia/gaia-etl/internal/logger"
)

func TestSchemaStatements(t *testing.T) {
	statements := schemaStatements()
	joined := strings.Join(statements, ";\n")

	for _, family := range []string{"pymupdf", "azure", "adobe"} {
		for _, table := range []string{"_info", "_page_info", "_attachments", "_attachment_mapping"} {
			want := "CREATE TABLE " + family + table
			if !strings.Contains(joined, want) {
				t.Errorf("schema missing %s", want)
			}
		}
		// The mapping's page column points at the page row's key.
		want := "page_id BIGINT NOT NULL REFERENCES " + family + "_page_info(info_id)"
		if !strings.Contains(joined, want) {
			t.Errorf("schema missing %q", want)
		}
	}
	for _, shared := range []string{"users", "gaia_features", "gaia_annotations", "analytics"} {
		if !strings.Contains(joined, "CREATE TABLE "+shared) {
			t.Errorf("schema missing shared table %s", shared)
		}
	}

	// No placeholder may survive expansion.
	if strings.Contains(joined, "{p}") {
		t.Error("schema contains unexpanded family placeholder")
	}

	// Drops come before creates so the bootstrap can rerun.
	dropIdx, createIdx := -1, -1
	for i, stmt := range statements {
		if strings.HasPrefix(stmt, "DROP TABLE IF EXISTS gaia_features") {
			dropIdx = i
		}
		if strings.HasPrefix(stmt, "CREATE TABLE gaia_features") {
			createIdx = i
		}
	}
	if dropIdx == -1 || createIdx == -1 || dropIdx > createIdx {
		t.Errorf("gaia_features drop at %d, create at %d", dropIdx, createIdx)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := retryDelay(2, tt.attempt); got != tt.want {
			t.Errorf("retryDelay(2, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNew_DSN(t *testing.T) {
	s := New(config.DatabaseConfig{
		Host:     "db.internal:5432",
		User:     "gaia",
		Password: "p@ss/word",
		Name:     "gaia_etl",
	}, logger.NewWithWriter(&bytes.Buffer{}))

	if !strings.HasPrefix(s.dsn, "postgres://gaia:") {
		t.Errorf("dsn = %q", s.dsn)
	}
	if !strings.HasSuffix(s.dsn, "@db.internal:5432/gaia_etl") {
		t.Errorf("dsn = %q", s.dsn)
	}
	if strings.Contains(s.dsn, "p@ss/word") {
		t.Errorf("dsn leaves password unescaped: %q", s.dsn)
	}
}

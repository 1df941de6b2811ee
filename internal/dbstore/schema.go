package dbstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigdataia/gaia-etl/internal/extract"
)

// backendFamilies are the table-name prefixes; each extraction backend
// writes to its own copy of the four-table family.
var backendFamilies = []string{
	extract.BackendLocal,
	extract.BackendAzure,
	extract.BackendAdobe,
}

// One DDL template instantiated per backend family. The mapping's page
// foreign key targets the page row's synthetic key, not the page number.
const familyDDL = `
DROP TABLE IF EXISTS {p}_attachment_mapping;
DROP TABLE IF EXISTS {p}_attachments;
DROP TABLE IF EXISTS {p}_page_info;
DROP TABLE IF EXISTS {p}_info;

CREATE TABLE {p}_info (
	pdf_id BIGSERIAL PRIMARY KEY,
	file_name TEXT NOT NULL,
	title TEXT,
	format TEXT,
	creator TEXT,
	author TEXT,
	encryption TEXT,
	number_of_pages INTEGER,
	number_of_words INTEGER,
	number_of_images INTEGER,
	number_of_tables INTEGER
);

CREATE TABLE {p}_page_info (
	info_id BIGSERIAL PRIMARY KEY,
	page_id INTEGER NOT NULL,
	pdf_id BIGINT NOT NULL REFERENCES {p}_info(pdf_id),
	text TEXT
);

CREATE TABLE {p}_attachments (
	attachment_id BIGSERIAL PRIMARY KEY,
	attachment_name TEXT NOT NULL,
	attachment_url TEXT
);

CREATE TABLE {p}_attachment_mapping (
	mapping_id BIGSERIAL PRIMARY KEY,
	pdf_id BIGINT NOT NULL REFERENCES {p}_info(pdf_id),
	page_id BIGINT NOT NULL REFERENCES {p}_page_info(info_id),
	attachment_id BIGINT NOT NULL REFERENCES {p}_attachments(attachment_id)
);
`

const sharedDDL = `
DROP TABLE IF EXISTS analytics;
DROP TABLE IF EXISTS gaia_annotations;
DROP TABLE IF EXISTS gaia_features;
DROP TABLE IF EXISTS users;

CREATE TABLE users (
	user_id BIGSERIAL PRIMARY KEY,
	first_name TEXT,
	last_name TEXT,
	phone TEXT,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	jwt_token TEXT
);

CREATE TABLE gaia_features (
	task_id TEXT PRIMARY KEY,
	dataset_type TEXT,
	question TEXT,
	level TEXT,
	final_answer TEXT,
	file_name TEXT,
	file_path TEXT
);

CREATE TABLE gaia_annotations (
	task_id TEXT PRIMARY KEY REFERENCES gaia_features(task_id),
	steps TEXT,
	number_of_steps TEXT,
	time_taken TEXT,
	tools TEXT,
	number_of_tools TEXT
);

CREATE TABLE analytics (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT REFERENCES users(user_id),
	task_id TEXT REFERENCES gaia_features(task_id),
	updated_steps TEXT,
	tokens_per_text_prompt INTEGER,
	tokens_per_attachment INTEGER,
	gpt_response TEXT,
	total_cost NUMERIC(10, 6),
	time_consumed DOUBLE PRECISION,
	feedback TEXT,
	time_stamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	extraction_service TEXT,
	marked_correct BOOLEAN
);
`

// schemaStatements expands the shared DDL plus one family per backend into
// individual statements, drops first.
func schemaStatements() []string {
	var ddl strings.Builder
	ddl.WriteString(sharedDDL)
	for _, family := range backendFamilies {
		ddl.WriteString(strings.ReplaceAll(familyDDL, "{p}", family))
	}

	var statements []string
	for _, stmt := range strings.Split(ddl.String(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// EnsureSchema drops and recreates every table. Existing rows are lost;
// this is the rebuild-from-scratch bootstrap, not a migration.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := schemaStatements()
	return s.withConn(ctx, func(conn *pgx.Conn) error {
		for _, stmt := range statements {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement failed: %w", err)
			}
		}
		s.log.Info().Int("statements", len(statements)).Msg("Schema recreated")
		return nil
	})
}

package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/extract"
)

// ErrMissingLayout reports that a document's JSON directory does not exist,
// meaning the layout writer never ran (or ran against a different root).
var ErrMissingLayout = errors.New("layout: page JSON directory missing")

const metadataFileName = "metadata.json"

// Metadata is the document-level record written next to the layout tree and
// loaded into the per-backend info table.
type Metadata struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	Creator        string `json:"creator"`
	Format         string `json:"format"`
	Encryption     string `json:"encryption"`
	NumberOfPages  int    `json:"number_of_pages"`
	NumberOfWords  int    `json:"number_of_words"`
	NumberOfImages int    `json:"number_of_images"`
	NumberOfTables int    `json:"number_of_tables"`
}

// Aggregator computes document metadata from a written layout tree.
type Aggregator struct {
	root string
	log  zerolog.Logger
}

func NewAggregator(root string, log zerolog.Logger) *Aggregator {
	return &Aggregator{root: root, log: log}
}

// Aggregate re-reads the document's page JSONs, sums word, image and table
// counts, merges them with the container metadata and writes metadata.json
// into the document's layout directory. Re-running against an unchanged
// layout produces the same metadata.
func (a *Aggregator) Aggregate(documentID string, meta extract.ContainerMeta) (*Metadata, error) {
	dir := filepath.Join(a.root, documentID)
	jsonDir := filepath.Join(dir, jsonDirName)

	entries, err := os.ReadDir(jsonDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingLayout, jsonDir)
		}
		return nil, fmt.Errorf("read layout dir: %w", err)
	}

	md := &Metadata{
		Title:         meta.Title,
		Author:        meta.Author,
		Creator:       meta.Creator,
		Format:        meta.Format,
		Encryption:    meta.Encryption,
		NumberOfPages: meta.PageCount,
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(jsonDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", entry.Name(), err)
		}
		var page pageDocument
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode page %s: %w", entry.Name(), err)
		}
		md.NumberOfWords += len(strings.Fields(page.Content.Text))
		md.NumberOfImages += len(page.Content.Images)
		md.NumberOfTables += len(page.Content.Tables)
	}

	out, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), out, 0o644); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	a.log.Info().
		Str("document", documentID).
		Int("words", md.NumberOfWords).
		Int("images", md.NumberOfImages).
		Int("tables", md.NumberOfTables).
		Msg("Metadata aggregated")
	return md, nil
}

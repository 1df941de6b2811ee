package layout

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bigdataia/gaia-etl/internal/extract"
)

// Subdirectory names of a document's layout tree. Downstream loaders and the
// evaluation service address files by these exact names.
const (
	jsonDirName  = "JSON"
	csvDirName   = "CSV"
	imageDirName = "Image"
)

// WrittenLayout lists everything a Write call produced for one document.
type WrittenLayout struct {
	Dir   string
	Pages []WrittenPage
}

// WrittenPage holds the paths written for a single page.
type WrittenPage struct {
	PageNumber int
	JSONPath   string
	TablePaths []string
	ImagePaths []string
}

type pageDocument struct {
	PageID  int         `json:"page_id"`
	Content pageContent `json:"content"`
}

type pageContent struct {
	Text   string   `json:"text"`
	Images []string `json:"image"`
	Tables []string `json:"table"`
}

// Writer materializes extraction results under root/<documentID>/ with
// JSON, CSV and Image subdirectories.
type Writer struct {
	root string
	log  zerolog.Logger
}

func NewWriter(root string, log zerolog.Logger) *Writer {
	return &Writer{root: root, log: log}
}

// Write replaces the document's layout tree with the given result. Any tree
// left over from a previous run is removed first, so only the current run's
// files survive.
func (w *Writer) Write(documentID string, result *extract.Result) (*WrittenLayout, error) {
	dir := filepath.Join(w.root, documentID)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear layout dir: %w", err)
	}
	for _, sub := range []string{jsonDirName, csvDirName, imageDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create layout dir: %w", err)
		}
	}

	written := &WrittenLayout{Dir: dir}
	for _, page := range result.Pages {
		wp, err := w.writePage(dir, page)
		if err != nil {
			return nil, err
		}
		written.Pages = append(written.Pages, *wp)
	}

	w.log.Info().
		Str("document", documentID).
		Int("pages", len(written.Pages)).
		Msg("Layout written")
	return written, nil
}

func (w *Writer) writePage(dir string, page extract.PageResult) (*WrittenPage, error) {
	wp := &WrittenPage{PageNumber: page.PageNumber}
	content := pageContent{Text: page.Text, Images: []string{}, Tables: []string{}}

	for i, table := range page.Tables {
		name := fmt.Sprintf("%d_table_%d.csv", page.PageNumber, i)
		path := filepath.Join(dir, csvDirName, name)
		if err := writeTableCSV(path, table); err != nil {
			return nil, fmt.Errorf("write table %s: %w", name, err)
		}
		content.Tables = append(content.Tables, name)
		wp.TablePaths = append(wp.TablePaths, path)
	}

	for i, img := range page.Images {
		name := fmt.Sprintf("%d_image_%d.%s", page.PageNumber, i, img.Ext)
		path := filepath.Join(dir, imageDirName, name)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write image %s: %w", name, err)
		}
		content.Images = append(content.Images, name)
		wp.ImagePaths = append(wp.ImagePaths, path)
	}

	doc := pageDocument{PageID: page.PageNumber, Content: content}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page.PageNumber, err)
	}
	wp.JSONPath = filepath.Join(dir, jsonDirName, fmt.Sprintf("%d.json", page.PageNumber))
	if err := os.WriteFile(wp.JSONPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write page %d: %w", page.PageNumber, err)
	}
	return wp, nil
}

func writeTableCSV(path string, table extract.TableData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	for _, row := range table {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

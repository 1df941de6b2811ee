package extract

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"unicode"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LocalBackend extracts content offline, page by page: plain text with
// accent folding, embedded raster images by reference, and tables detected
// from the page text. A failure on one page's sub-item is logged and that
// sub-item skipped; the rest of the page still succeeds.
type LocalBackend struct {
	log zerolog.Logger
}

// NewLocalBackend creates the offline extraction backend.
func NewLocalBackend(log zerolog.Logger) *LocalBackend {
	return &LocalBackend{log: log}
}

// Name implements Backend.
func (b *LocalBackend) Name() string {
	return BackendLocal
}

// Extract implements Backend. A failure opening the document is fatal for
// this document only.
func (b *LocalBackend) Extract(ctx context.Context, documentID string, pdf []byte) (*Result, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, failure(BackendLocal, documentID, err)
	}
	defer doc.Close()

	meta := doc.Metadata()
	result := &Result{
		Meta: ContainerMeta{
			Title:      meta["title"],
			Author:     meta["author"],
			Creator:    meta["creator"],
			Format:     meta["format"],
			Encryption: meta["encryption"],
			PageCount:  doc.NumPage(),
		},
	}

	imagesByPage := b.extractImages(documentID, pdf)

	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, failure(BackendLocal, documentID, err)
		}

		pageID := pageNum + 1

		text, err := doc.Text(pageNum)
		if err != nil {
			// The page is omitted entirely, not zero-filled.
			b.log.Error().Err(err).Str("document", documentID).Int("page", pageID).
				Msg("Error extracting page text")
			continue
		}

		page := PageResult{
			PageNumber: pageID,
			Text:       foldAccents(text),
			Tables:     detectTables(text),
			Images:     imagesByPage[pageID],
		}
		result.Pages = append(result.Pages, page)
	}

	return result, nil
}

// extractImages pulls embedded raster images by reference, grouped by
// 1-based page number. An extraction failure costs only the images.
func (b *LocalBackend) extractImages(documentID string, pdf []byte) map[int][]ImageData {
	imagesByPage := make(map[int][]ImageData)

	conf := model.NewDefaultConfiguration()
	pageImages, err := api.ExtractImagesRaw(bytes.NewReader(pdf), nil, conf)
	if err != nil {
		b.log.Error().Err(err).Str("document", documentID).Msg("Error extracting embedded images")
		return imagesByPage
	}

	for _, byObj := range pageImages {
		// Iterate object numbers in order so per-page image indices are stable.
		objNrs := make([]int, 0, len(byObj))
		for objNr := range byObj {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			img := byObj[objNr]
			data, err := io.ReadAll(img)
			if err != nil {
				b.log.Error().Err(err).Str("document", documentID).
					Str("image", img.Name+"_"+strconv.Itoa(objNr)).
					Msg("Error reading embedded image")
				continue
			}
			imagesByPage[img.PageNr] = append(imagesByPage[img.PageNr], ImageData{
				Ext:  img.FileType,
				Data: data,
			})
		}
	}

	return imagesByPage
}

// foldAccents transliterates accented characters to their ASCII base form,
// e.g. "café" becomes "cafe".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const azureAPIVersion = "2023-07-31"

// AzureBackend submits the whole document to the layout-aware document
// analysis service, polls the prebuilt-document job to completion, and maps
// the service's page/table/cell model into the normalized shape.
//
// Tables keep the service's flattened row_index/column_index/text triples
// (one grid row per cell under a fixed header) instead of being reduced to
// a 2-D grid the way the local backend's tables are.
type AzureBackend struct {
	endpoint     string
	key          string
	http         *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
}

// NewAzureBackend creates the layout-aware cloud backend.
func NewAzureBackend(endpoint, key string, log zerolog.Logger) *AzureBackend {
	return &AzureBackend{
		endpoint:     strings.TrimRight(endpoint, "/"),
		key:          key,
		http:         &http.Client{Timeout: 2 * time.Minute},
		pollInterval: 2 * time.Second,
		log:          log,
	}
}

// Name implements Backend.
func (b *AzureBackend) Name() string {
	return BackendAzure
}

type azureAnalyzeResponse struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Pages []struct {
			PageNumber int `json:"pageNumber"`
			Lines      []struct {
				Content string `json:"content"`
			} `json:"lines"`
			Images []struct {
				Content string `json:"content"`
			} `json:"images"`
		} `json:"pages"`
		Tables []struct {
			Cells []struct {
				RowIndex        int    `json:"rowIndex"`
				ColumnIndex     int    `json:"columnIndex"`
				Content         string `json:"content"`
				BoundingRegions []struct {
					PageNumber int `json:"pageNumber"`
				} `json:"boundingRegions"`
			} `json:"cells"`
		} `json:"tables"`
	} `json:"analyzeResult"`
}

// Extract implements Backend.
func (b *AzureBackend) Extract(ctx context.Context, documentID string, pdf []byte) (*Result, error) {
	operationURL, err := b.submit(ctx, pdf)
	if err != nil {
		return nil, failure(BackendAzure, documentID, err)
	}

	analysis, err := b.poll(ctx, operationURL)
	if err != nil {
		return nil, failure(BackendAzure, documentID, err)
	}

	return b.normalize(documentID, analysis), nil
}

func (b *AzureBackend) submit(ctx context.Context, pdf []byte) (string, error) {
	url := fmt.Sprintf("%s/formrecognizer/documentModels/prebuilt-document:analyze?api-version=%s",
		b.endpoint, azureAPIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(pdf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Ocp-Apim-Subscription-Key", b.key)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit analysis: status %s: %s", resp.Status, body)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("submit analysis: missing Operation-Location header")
	}
	return operationURL, nil
}

func (b *AzureBackend) poll(ctx context.Context, operationURL string) (*azureAnalyzeResponse, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", b.key)

		resp, err := b.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("poll analysis: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("poll analysis: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("poll analysis: status %s: %s", resp.Status, body)
		}

		var analysis azureAnalyzeResponse
		if err := json.Unmarshal(body, &analysis); err != nil {
			return nil, fmt.Errorf("poll analysis: decode: %w", err)
		}

		switch analysis.Status {
		case "succeeded":
			return &analysis, nil
		case "failed":
			return nil, fmt.Errorf("analysis job failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}
	}
}

func (b *AzureBackend) normalize(documentID string, analysis *azureAnalyzeResponse) *Result {
	result := &Result{
		Meta: ContainerMeta{
			Format:    "PDF",
			PageCount: len(analysis.AnalyzeResult.Pages),
		},
	}

	// Tables arrive document-level; attach each to the page of its first cell.
	tablesByPage := make(map[int][]TableData)
	for _, table := range analysis.AnalyzeResult.Tables {
		if len(table.Cells) == 0 {
			continue
		}
		grid := TableData{{"row_index", "column_index", "text"}}
		pageNumber := 0
		for _, cell := range table.Cells {
			if pageNumber == 0 && len(cell.BoundingRegions) > 0 {
				pageNumber = cell.BoundingRegions[0].PageNumber
			}
			grid = append(grid, []string{
				strconv.Itoa(cell.RowIndex),
				strconv.Itoa(cell.ColumnIndex),
				cell.Content,
			})
		}
		if pageNumber == 0 {
			pageNumber = 1
		}
		tablesByPage[pageNumber] = append(tablesByPage[pageNumber], grid)
	}

	for _, page := range analysis.AnalyzeResult.Pages {
		var lines []string
		for _, line := range page.Lines {
			if strings.TrimSpace(line.Content) != "" {
				lines = append(lines, line.Content)
			}
		}

		var images []ImageData
		for _, image := range page.Images {
			decoded, ext, err := decodeDataURI(image.Content)
			if err != nil {
				b.log.Warn().Err(err).Str("document", documentID).Int("page", page.PageNumber).
					Msg("Unsupported image format in analysis result")
				continue
			}
			images = append(images, ImageData{Ext: ext, Data: decoded})
		}

		result.Pages = append(result.Pages, PageResult{
			PageNumber: page.PageNumber,
			Text:       strings.Join(lines, " "),
			Tables:     tablesByPage[page.PageNumber],
			Images:     images,
		})
	}

	return result
}

// decodeDataURI decodes a base64 data URI like "data:image/png;base64,...".
func decodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:image/") {
		return nil, "", fmt.Errorf("not an image data URI")
	}
	rest := strings.TrimPrefix(uri, "data:image/")

	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return nil, "", fmt.Errorf("missing base64 payload")
	}

	ext := rest[:sep]
	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 payload: %w", err)
	}
	return data, ext, nil
}

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const adobeManifestName = "structuredData.json"

// AdobeBackend submits the document to the structure-export service:
// upload as an asset, run an extract job requesting text, tables and figure
// renditions with CSV table serialization, download the result archive and
// read its element manifest. Elements are grouped into pages by the
// manifest's page-index field.
type AdobeBackend struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	pollInterval time.Duration
	log          zerolog.Logger
}

// NewAdobeBackend creates the structure-export cloud backend.
func NewAdobeBackend(clientID, clientSecret string, log zerolog.Logger) *AdobeBackend {
	return &AdobeBackend{
		baseURL:      "https://pdf-services.adobe.io",
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 5 * time.Minute},
		pollInterval: 2 * time.Second,
		log:          log,
	}
}

// Name implements Backend.
func (b *AdobeBackend) Name() string {
	return BackendAdobe
}

// Extract implements Backend. Auth, quota and malformed-response failures
// surface as a single ExtractionFailure for this document.
func (b *AdobeBackend) Extract(ctx context.Context, documentID string, pdf []byte) (*Result, error) {
	token, err := b.fetchToken(ctx)
	if err != nil {
		return nil, failure(BackendAdobe, documentID, err)
	}

	assetID, err := b.uploadAsset(ctx, token, pdf)
	if err != nil {
		return nil, failure(BackendAdobe, documentID, err)
	}

	archive, err := b.runExtractJob(ctx, token, assetID)
	if err != nil {
		return nil, failure(BackendAdobe, documentID, err)
	}

	result, err := b.normalize(archive)
	if err != nil {
		return nil, failure(BackendAdobe, documentID, err)
	}
	return result, nil
}

func (b *AdobeBackend) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {b.clientID},
		"client_secret": {b.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := b.doJSON(req, http.StatusOK, &tokenResp); err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("fetch token: empty access token")
	}
	return tokenResp.AccessToken, nil
}

func (b *AdobeBackend) uploadAsset(ctx context.Context, token string, pdf []byte) (string, error) {
	body, _ := json.Marshal(map[string]string{"mediaType": "application/pdf"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/assets",
		bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	b.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	var assetResp struct {
		UploadURI string `json:"uploadUri"`
		AssetID   string `json:"assetID"`
	}
	if err := b.doJSON(req, http.StatusOK, &assetResp); err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, assetResp.UploadURI,
		bytes.NewReader(pdf))
	if err != nil {
		return "", err
	}
	putReq.Header.Set("Content-Type", "application/pdf")

	putResp, err := b.http.Do(putReq)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	defer putResp.Body.Close()
	if putResp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("upload asset: status %s", putResp.Status)
	}

	return assetResp.AssetID, nil
}

// runExtractJob submits the extract job, polls it to completion and returns
// the downloaded result archive.
func (b *AdobeBackend) runExtractJob(ctx context.Context, token, assetID string) ([]byte, error) {
	params := map[string]interface{}{
		"assetID":                     assetID,
		"elementsToExtract":           []string{"text", "tables"},
		"elementsToExtractRenditions": []string{"figures"},
		"tableOutputFormat":           "csv",
	}
	body, _ := json.Marshal(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/operation/extractpdf", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	b.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit extract job: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("submit extract job: status %s", resp.Status)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("submit extract job: missing location header")
	}

	downloadURI, err := b.pollJob(ctx, token, location)
	if err != nil {
		return nil, err
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURI, nil)
	if err != nil {
		return nil, err
	}
	dlResp, err := b.http.Do(dlReq)
	if err != nil {
		return nil, fmt.Errorf("download result archive: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download result archive: status %s", dlResp.Status)
	}
	return io.ReadAll(dlResp.Body)
}

func (b *AdobeBackend) pollJob(ctx context.Context, token, location string) (string, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return "", err
		}
		b.authorize(req, token)

		var status struct {
			Status   string `json:"status"`
			Resource struct {
				DownloadURI string `json:"downloadUri"`
			} `json:"resource"`
		}
		if err := b.doJSON(req, http.StatusOK, &status); err != nil {
			return "", fmt.Errorf("poll extract job: %w", err)
		}

		switch status.Status {
		case "done":
			if status.Resource.DownloadURI == "" {
				return "", fmt.Errorf("extract job done but no result archive")
			}
			return status.Resource.DownloadURI, nil
		case "failed":
			return "", fmt.Errorf("extract job failed")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(b.pollInterval):
		}
	}
}

type adobeManifest struct {
	ExtendedMetadata struct {
		PageCount   int  `json:"page_count"`
		IsEncrypted bool `json:"is_encrypted"`
	} `json:"extended_metadata"`
	Elements []struct {
		Text      string   `json:"Text"`
		Page      int      `json:"Page"`
		Path      string   `json:"Path"`
		FilePaths []string `json:"filePaths"`
	} `json:"elements"`
}

// normalize reads the element manifest out of the result archive and folds
// elements into per-page text, tables and figure images.
func (b *AdobeBackend) normalize(archive []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open result archive: %w", err)
	}

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read archive entry %s: %w", f.Name, err)
		}
		files[f.Name] = data
	}

	manifestData, ok := files[adobeManifestName]
	if !ok {
		return nil, fmt.Errorf("result archive has no %s", adobeManifestName)
	}

	var manifest adobeManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("decode %s: %w", adobeManifestName, err)
	}

	encryption := ""
	if manifest.ExtendedMetadata.IsEncrypted {
		encryption = "encrypted"
	}

	// The manifest's page index is zero-based; page numbers are 1-based.
	texts := make(map[int][]string)
	tables := make(map[int][]TableData)
	images := make(map[int][]ImageData)

	for _, element := range manifest.Elements {
		pageNumber := element.Page + 1

		if element.Text != "" {
			texts[pageNumber] = append(texts[pageNumber], element.Text)
		}

		for _, fp := range element.FilePaths {
			data, ok := files[fp]
			if !ok {
				continue
			}
			switch ext := strings.TrimPrefix(path.Ext(fp), "."); ext {
			case "csv":
				table, err := parseCSVTable(data)
				if err != nil {
					b.log.Error().Err(err).Str("entry", fp).Msg("Error parsing table from result archive")
					continue
				}
				tables[pageNumber] = append(tables[pageNumber], table)
			case "png", "jpg", "jpeg", "gif":
				images[pageNumber] = append(images[pageNumber], ImageData{Ext: ext, Data: data})
			}
		}
	}

	seen := make(map[int]bool)
	var pageNumbers []int
	collect := func(n int) {
		if !seen[n] {
			seen[n] = true
			pageNumbers = append(pageNumbers, n)
		}
	}
	for n := range texts {
		collect(n)
	}
	for n := range tables {
		collect(n)
	}
	for n := range images {
		collect(n)
	}
	sort.Ints(pageNumbers)

	result := &Result{
		Meta: ContainerMeta{
			Format:     "PDF",
			Encryption: encryption,
			PageCount:  manifest.ExtendedMetadata.PageCount,
		},
	}
	for _, n := range pageNumbers {
		result.Pages = append(result.Pages, PageResult{
			PageNumber: n,
			Text:       strings.Join(texts[n], ""),
			Tables:     tables[n],
			Images:     images[n],
		})
	}
	return result, nil
}

func parseCSVTable(data []byte) (TableData, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return TableData(rows), nil
}

func (b *AdobeBackend) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-api-key", b.clientID)
}

func (b *AdobeBackend) doJSON(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("status %s: %s", resp.Status, body)
	}
	return json.Unmarshal(body, out)
}

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrSourceUnavailable reports that the dataset repository could not be
// listed (network, auth). An empty listing is not an error; callers treat
// it as a distinct zero-files condition.
var ErrSourceUnavailable = errors.New("dataset repository unavailable")

const defaultBaseURL = "https://huggingface.co"

// Repository identifies a dataset repository on the hub.
type Repository struct {
	ID   string
	Type string // "dataset" or "model"
}

// Client lists and downloads files from a dataset hub repository.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a hub client authenticated with the given access token.
func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
		log:     log,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake hub.
func NewClientWithBaseURL(baseURL, token string, log zerolog.Logger) *Client {
	c := NewClient(token, log)
	c.baseURL = baseURL
	return c
}

type repoInfo struct {
	Siblings []struct {
		Rfilename string `json:"rfilename"`
	} `json:"siblings"`
}

// List returns the repository file paths starting with splitPrefix.
// An empty splitPrefix returns the full listing.
func (c *Client) List(ctx context.Context, repo Repository, splitPrefix string) ([]string, error) {
	url := fmt.Sprintf("%s/api/%ss/%s", c.baseURL, repo.Type, repo.ID)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrSourceUnavailable, repo.ID, err)
	}

	var info repoInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%w: decoding listing for %s: %v", ErrSourceUnavailable, repo.ID, err)
	}

	var files []string
	for _, s := range info.Siblings {
		if strings.HasPrefix(s.Rfilename, splitPrefix) {
			files = append(files, s.Rfilename)
		}
	}

	c.log.Info().Str("repo", repo.ID).Str("prefix", splitPrefix).Int("files", len(files)).
		Msg("Fetched file list from hub")
	return files, nil
}

// Download fetches one repository file by path and returns its bytes.
// Single attempt; failures are reported to the caller, not retried.
func (c *Client) Download(ctx context.Context, repo Repository, path string) ([]byte, error) {
	prefix := ""
	if repo.Type == "dataset" {
		prefix = "datasets/"
	}
	url := fmt.Sprintf("%s/%s%s/resolve/main/%s", c.baseURL, prefix, repo.ID, path)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s from %s: %w", path, repo.ID, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/bigdataia/gaia-etl/internal/logger"
)

func buildResultArchive(t *testing.T, manifest string, extra map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(adobeManifestName)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(manifest))
	for name, data := range extra {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAdobeExtract(t *testing.T) {
	manifest := `{
		"extended_metadata": {"page_count": 2, "is_encrypted": true},
		"elements": [
			{"Text": "First page text. ", "Page": 0, "Path": "//Document/P"},
			{"Text": "More text.", "Page": 0, "Path": "//Document/P[2]"},
			{"Page": 0, "Path": "//Document/Table", "filePaths": ["tables/fileoutpart0.csv"]},
			{"Page": 1, "Path": "//Document/Figure", "filePaths": ["figures/fileoutpart1.png"]}
		]
	}`
	archive := buildResultArchive(t, manifest, map[string][]byte{
		"tables/fileoutpart0.csv": []byte("name,total\nalice,3\n"),
		"figures/fileoutpart1.png": {0x89, 0x50, 0x4e, 0x47},
	})

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("client_id") != "client" || r.PostForm.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("asset Authorization = %q", got)
		}
		if got := r.Header.Get("x-api-key"); got != "client" {
			t.Errorf("asset x-api-key = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"uploadUri": srv.URL + "/upload/asset-1",
			"assetID":   "asset-1",
		})
	})
	var uploaded []byte
	mux.HandleFunc("/upload/asset-1", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		buf.ReadFrom(r.Body)
		uploaded = buf.Bytes()
	})
	mux.HandleFunc("/operation/extractpdf", func(w http.ResponseWriter, r *http.Request) {
		var params struct {
			AssetID string `json:"assetID"`
		}
		json.NewDecoder(r.Body).Decode(&params)
		if params.AssetID != "asset-1" {
			t.Errorf("extract job assetID = %q", params.AssetID)
		}
		w.Header().Set("Location", srv.URL+"/jobs/job-1")
		w.WriteHeader(http.StatusCreated)
	})
	polls := 0
	mux.HandleFunc("/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls == 1 {
			json.NewEncoder(w).Encode(map[string]string{"status": "in progress"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "done",
			"resource": map[string]string{"downloadUri": srv.URL + "/result.zip"},
		})
	})
	mux.HandleFunc("/result.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	backend := NewAdobeBackend("client", "secret", logger.NewWithWriter(&bytes.Buffer{}))
	backend.baseURL = srv.URL
	backend.pollInterval = time.Millisecond

	result, err := backend.Extract(context.Background(), "doc-1", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(uploaded) != "%PDF-1.7" {
		t.Errorf("uploaded asset = %q", uploaded)
	}
	if polls != 2 {
		t.Errorf("polls = %d, want 2", polls)
	}

	wantMeta := ContainerMeta{Format: "PDF", Encryption: "encrypted", PageCount: 2}
	if result.Meta != wantMeta {
		t.Errorf("Meta = %+v, want %+v", result.Meta, wantMeta)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(result.Pages))
	}

	page1 := result.Pages[0]
	if page1.PageNumber != 1 {
		t.Errorf("Pages[0].PageNumber = %d, want 1", page1.PageNumber)
	}
	if page1.Text != "First page text. More text." {
		t.Errorf("Pages[0].Text = %q", page1.Text)
	}
	wantTable := TableData{{"name", "total"}, {"alice", "3"}}
	if len(page1.Tables) != 1 || !reflect.DeepEqual(page1.Tables[0], wantTable) {
		t.Errorf("Pages[0].Tables = %v, want [%v]", page1.Tables, wantTable)
	}

	page2 := result.Pages[1]
	if page2.PageNumber != 2 {
		t.Errorf("Pages[1].PageNumber = %d, want 2", page2.PageNumber)
	}
	if len(page2.Images) != 1 || page2.Images[0].Ext != "png" {
		t.Fatalf("Pages[1].Images = %v, want one png", page2.Images)
	}
	if !bytes.Equal(page2.Images[0].Data, []byte{0x89, 0x50, 0x4e, 0x47}) {
		t.Errorf("Pages[1].Images[0].Data = %v", page2.Images[0].Data)
	}
}

func TestAdobeExtract_TokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	backend := NewAdobeBackend("client", "bad", logger.NewWithWriter(&bytes.Buffer{}))
	backend.baseURL = srv.URL

	_, err := backend.Extract(context.Background(), "doc-1", []byte("%PDF-1.7"))
	var ef *ExtractionFailure
	if !errors.As(err, &ef) {
		t.Fatalf("Extract error = %v, want *ExtractionFailure", err)
	}
	if ef.Backend != BackendAdobe || ef.DocumentID != "doc-1" {
		t.Errorf("failure = %+v", ef)
	}
}

func TestAdobeNormalize_MissingManifest(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Close()

	backend := NewAdobeBackend("client", "secret", logger.NewWithWriter(&bytes.Buffer{}))
	if _, err := backend.normalize(buf.Bytes()); err == nil {
		t.Fatal("normalize of archive without manifest succeeded")
	}
}

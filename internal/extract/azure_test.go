package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/bigdataia/gaia-etl/internal/logger"
)

const azureResultFixture = `{
	"status": "succeeded",
	"analyzeResult": {
		"pages": [
			{
				"pageNumber": 1,
				"lines": [
					{"content": "Hello"},
					{"content": "   "},
					{"content": "world"}
				],
				"images": []
			},
			{
				"pageNumber": 2,
				"lines": [{"content": "Second page"}],
				"images": [{"content": "%s"}]
			}
		],
		"tables": [
			{
				"cells": [
					{"rowIndex": 0, "columnIndex": 0, "content": "Name", "boundingRegions": [{"pageNumber": 2}]},
					{"rowIndex": 0, "columnIndex": 1, "content": "Age", "boundingRegions": [{"pageNumber": 2}]},
					{"rowIndex": 1, "columnIndex": 0, "content": "Ada", "boundingRegions": [{"pageNumber": 2}]}
				]
			}
		]
	}
}`

func TestAzureExtract(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)

	polls := 0
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/formrecognizer/documentModels/prebuilt-document:analyze",
		func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Ocp-Apim-Subscription-Key") != "key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		})
	mux.HandleFunc("/operations/1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls == 1 {
			json.NewEncoder(w).Encode(map[string]string{"status": "running"})
			return
		}
		w.Write([]byte(fmt.Sprintf(azureResultFixture, dataURI)))
	})

	b := NewAzureBackend(srv.URL, "key", logger.New("test", ""))
	b.pollInterval = time.Millisecond

	result, err := b.Extract(context.Background(), "doc-1", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if result.Meta.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", result.Meta.PageCount)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(result.Pages))
	}

	if got := result.Pages[0].Text; got != "Hello world" {
		t.Errorf("page 1 text = %q, want %q (blank lines dropped, space-joined)", got, "Hello world")
	}
	if len(result.Pages[0].Tables) != 0 {
		t.Errorf("page 1 should have no tables")
	}

	wantTable := TableData{
		{"row_index", "column_index", "text"},
		{"0", "0", "Name"},
		{"0", "1", "Age"},
		{"1", "0", "Ada"},
	}
	if len(result.Pages[1].Tables) != 1 || !reflect.DeepEqual(result.Pages[1].Tables[0], wantTable) {
		t.Errorf("page 2 tables = %v, want [%v]", result.Pages[1].Tables, wantTable)
	}

	if len(result.Pages[1].Images) != 1 {
		t.Fatalf("page 2 should have one decoded image")
	}
	img := result.Pages[1].Images[0]
	if img.Ext != "png" || !reflect.DeepEqual(img.Data, pngBytes) {
		t.Errorf("decoded image = {%s %v}, want {png %v}", img.Ext, img.Data, pngBytes)
	}
}

func TestAzureExtract_JobFailure(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/formrecognizer/documentModels/prebuilt-document:analyze",
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		})
	mux.HandleFunc("/operations/1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "failed"})
	})

	b := NewAzureBackend(srv.URL, "key", logger.New("test", ""))
	b.pollInterval = time.Millisecond

	_, err := b.Extract(context.Background(), "doc-1", []byte("%PDF"))
	var ef *ExtractionFailure
	if !errors.As(err, &ef) {
		t.Fatalf("expected ExtractionFailure, got %v", err)
	}
	if ef.Backend != BackendAzure || ef.DocumentID != "doc-1" {
		t.Errorf("failure = %+v, want azure/doc-1", ef)
	}
}

func TestDecodeDataURI_Unsupported(t *testing.T) {
	if _, _, err := decodeDataURI("not-a-data-uri"); err == nil {
		t.Error("expected error for non-image payload")
	}
	if _, _, err := decodeDataURI("data:image/png;hex,00"); err == nil {
		t.Error("expected error for non-base64 payload")
	}
}

package annotations

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleRecord(taskID, answer string) Record {
	return Record{
		"task_id":      taskID,
		"Question":     "What is the total?",
		"Level":        "1",
		"Final answer": answer,
		"file_name":    "report.pdf",
		"Annotator Metadata": map[string]interface{}{
			"Steps":                   "1. Open report.pdf 2. The total is " + answer,
			"Number of steps":         "2",
			"How long did this take?": "5 minutes",
			"Tools":                   "pdf viewer",
			"Number of tools":         "1",
		},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")
	records := []Record{sampleRecord("t-1", "42")}

	if err := WriteCSV(records, path); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	row := rows[0]
	if row.TaskID != "t-1" || row.Question != "What is the total?" || row.FinalAnswer != "42" {
		t.Errorf("row = %+v", row)
	}
	if !strings.Contains(row.Metadata, `"Number of steps":"2"`) {
		t.Errorf("metadata cell = %q", row.Metadata)
	}
}

func TestFormatForLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")
	if err := WriteCSV([]Record{sampleRecord("t-1", "42")}, path); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}

	index := map[string]string{"report.pdf": "/bucket/files/test/report.pdf"}
	feature, annotation, err := FormatForLoad(rows[0], index, "test")
	if err != nil {
		t.Fatalf("FormatForLoad: %v", err)
	}

	if feature.DatasetType != "test" {
		t.Errorf("DatasetType = %q", feature.DatasetType)
	}
	if feature.FilePath != "/bucket/files/test/report.pdf" {
		t.Errorf("FilePath = %q", feature.FilePath)
	}
	if strings.Contains(annotation.Steps, "42") {
		t.Errorf("steps still contain the final answer: %q", annotation.Steps)
	}
	if annotation.NumberOfSteps != "2" || annotation.Tools != "pdf viewer" {
		t.Errorf("annotation = %+v", annotation)
	}
}

func TestFormatForLoad_UnresolvedFileName(t *testing.T) {
	row := Row{TaskID: "t-9", FileName: "nowhere.pdf", Metadata: `{"Steps": "none"}`}
	feature, _, err := FormatForLoad(row, map[string]string{}, "validation")
	if err != nil {
		t.Fatalf("FormatForLoad: %v", err)
	}
	if feature.FilePath != "" {
		t.Errorf("FilePath = %q, want empty for unresolved name", feature.FilePath)
	}
}

func TestFormatRows_BadMetadataAbortsBatch(t *testing.T) {
	rows := []Row{
		{TaskID: "t-1", Metadata: `{"Steps": "fine"}`},
		{TaskID: "t-2", Metadata: `{not json`},
	}
	_, _, err := FormatRows(rows, nil, "test")
	if err == nil {
		t.Fatal("want error for undecodable metadata")
	}
	if !strings.Contains(err.Error(), "t-2") {
		t.Errorf("error does not name the failing task: %v", err)
	}
}

func TestFormatRows(t *testing.T) {
	rows := []Row{
		{TaskID: "t-1", FinalAnswer: "7", Metadata: `{"Steps": "answer is 7", "Number of steps": "1"}`},
		{TaskID: "t-2", Metadata: `{"Steps": "no answer here"}`},
	}
	features, annotations, err := FormatRows(rows, nil, "validation")
	if err != nil {
		t.Fatalf("FormatRows: %v", err)
	}
	if len(features) != 2 || len(annotations) != 2 {
		t.Fatalf("got %d features, %d annotations", len(features), len(annotations))
	}
	want := []string{"answer is ", "no answer here"}
	for i, a := range annotations {
		if a.Steps != want[i] {
			t.Errorf("annotations[%d].Steps = %q, want %q", i, a.Steps, want[i])
		}
	}
	if !reflect.DeepEqual([]string{features[0].TaskID, features[1].TaskID}, []string{"t-1", "t-2"}) {
		t.Errorf("features = %+v", features)
	}
}

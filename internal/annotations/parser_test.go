package annotations

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bigdataia/gaia-etl/internal/logger"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  plain  ", "plain"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"a \x00 b", "a b"},
		{`say "hi" there`, "say hi there"},
		{`a " " b`, "a b"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := cleanString(tt.in); got != tt.want {
			t.Errorf("cleanString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanData(t *testing.T) {
	record := Record{
		"task_id":  " t-1 ",
		"Question": nil,
		"Level":    float64(2),
		"tools":    []interface{}{" web search ", float64(3)},
		"Annotator Metadata": map[string]interface{}{
			"Steps":           "step\none\rstep two",
			"Number of steps": float64(2),
		},
	}
	got := CleanData(record)

	want := Record{
		"task_id":  "t-1",
		"Question": "",
		"Level":    "2",
		"tools":    []interface{}{"web search", "3"},
		"Annotator Metadata": map[string]interface{}{
			"Steps":           "step one step two",
			"Number of steps": "2",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CleanData = %#v, want %#v", got, want)
	}
}

func TestCleanData_Idempotent(t *testing.T) {
	record := Record{
		"a": `  "quoted"   text  `,
		"b": nil,
		"nested": map[string]interface{}{
			"c": "x\t\ty",
		},
	}
	once := CleanData(record)

	// Deep copy before the second pass so a mutation would show up.
	copied := Record{}
	for k, v := range once {
		if m, ok := v.(map[string]interface{}); ok {
			inner := map[string]interface{}{}
			for ik, iv := range m {
				inner[ik] = iv
			}
			copied[k] = inner
			continue
		}
		copied[k] = v
	}
	twice := CleanData(copied)
	if !reflect.DeepEqual(twice, once) {
		t.Errorf("second clean changed the record: %#v vs %#v", twice, once)
	}
}

func TestParseAnnotations_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.jsonl")
	content := `{"task_id": "t-1", "Question": " q1 "}
not json at all
{"task_id": "t-2", "Question": null}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var logged bytes.Buffer
	records, err := ParseAnnotations(path, logger.NewWithWriter(&logged))
	if err != nil {
		t.Fatalf("ParseAnnotations: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0]["Question"] != "q1" {
		t.Errorf("records[0].Question = %q", records[0]["Question"])
	}
	if records[1]["Question"] != "" {
		t.Errorf("null Question = %q, want empty string", records[1]["Question"])
	}
	if !bytes.Contains(logged.Bytes(), []byte("malformed")) {
		t.Error("malformed line was not logged")
	}
}

func TestParseAnnotations_MissingFile(t *testing.T) {
	_, err := ParseAnnotations(filepath.Join(t.TempDir(), "absent.jsonl"), logger.NewWithWriter(&bytes.Buffer{}))
	if err == nil {
		t.Fatal("want error for missing file")
	}
}

package annotations

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// csvColumns is the fixed column set of a split's CSV, matching the source
// dataset's field names. The annotator metadata travels as a JSON string in
// its cell.
var csvColumns = []string{
	"task_id",
	"Question",
	"Level",
	"Final answer",
	"file_name",
	"file_path",
	"Annotator Metadata",
}

// Row is one CSV line of a dataset split.
type Row struct {
	TaskID      string
	Question    string
	Level       string
	FinalAnswer string
	FileName    string
	FilePath    string
	Metadata    string
}

// WriteCSV writes cleaned records to one CSV file for a dataset split.
func WriteCSV(records []Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		row, err := recordToRow(record)
		if err != nil {
			return err
		}
		line := []string{
			row.TaskID, row.Question, row.Level, row.FinalAnswer,
			row.FileName, row.FilePath, row.Metadata,
		}
		if err := w.Write(line); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.TaskID, err)
		}
	}
	w.Flush()
	return w.Error()
}

func recordToRow(record Record) (*Row, error) {
	row := &Row{
		TaskID:      fieldString(record, "task_id"),
		Question:    fieldString(record, "Question"),
		Level:       fieldString(record, "Level"),
		FinalAnswer: fieldString(record, "Final answer"),
		FileName:    fieldString(record, "file_name"),
		FilePath:    fieldString(record, "file_path"),
	}
	if meta, ok := record["Annotator Metadata"]; ok {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode metadata for task %s: %w", row.TaskID, err)
		}
		row.Metadata = string(data)
	}
	return row, nil
}

func fieldString(record Record, key string) string {
	if v, ok := record[key].(string); ok {
		return v
	}
	return ""
}

// ReadCSV loads a split CSV back into rows, header first.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(csvColumns) {
		return nil, fmt.Errorf("csv has %d columns, want %d", len(header), len(csvColumns))
	}

	var rows []Row
	for {
		line, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, Row{
			TaskID:      line[0],
			Question:    line[1],
			Level:       line[2],
			FinalAnswer: line[3],
			FileName:    line[4],
			FilePath:    line[5],
			Metadata:    line[6],
		})
	}
	return rows, nil
}

package annotations

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bigdataia/gaia-etl/internal/dbstore"
)

type annotatorMetadata struct {
	Steps         string `json:"Steps"`
	NumberOfSteps string `json:"Number of steps"`
	TimeTaken     string `json:"How long did this take?"`
	Tools         string `json:"Tools"`
	NumberOfTools string `json:"Number of tools"`
}

// FormatForLoad turns one CSV row into its feature and annotation rows:
// the file name resolves to a storage path through the blob index, the
// annotator metadata cell is decoded, and the final-answer string is
// excised from the step narrative so it cannot leak into prompts. A
// metadata cell that does not decode fails the row, and the caller's batch
// with it.
func FormatForLoad(row Row, pathIndex map[string]string, split string) (*dbstore.Feature, *dbstore.Annotation, error) {
	feature := &dbstore.Feature{
		TaskID:      row.TaskID,
		DatasetType: split,
		Question:    row.Question,
		Level:       row.Level,
		FinalAnswer: row.FinalAnswer,
		FileName:    row.FileName,
		FilePath:    pathIndex[row.FileName],
	}

	var meta annotatorMetadata
	if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
		return nil, nil, fmt.Errorf("task %s: decode annotator metadata: %w", row.TaskID, err)
	}

	steps := meta.Steps
	if feature.FinalAnswer != "" {
		steps = strings.ReplaceAll(steps, feature.FinalAnswer, "")
	}

	annotation := &dbstore.Annotation{
		TaskID:        row.TaskID,
		Steps:         steps,
		NumberOfSteps: meta.NumberOfSteps,
		TimeTaken:     meta.TimeTaken,
		Tools:         meta.Tools,
		NumberOfTools: meta.NumberOfTools,
	}
	return feature, annotation, nil
}

// FormatRows maps a whole split's rows; the first bad metadata cell aborts
// the batch.
func FormatRows(rows []Row, pathIndex map[string]string, split string) ([]dbstore.Feature, []dbstore.Annotation, error) {
	features := make([]dbstore.Feature, 0, len(rows))
	annotations := make([]dbstore.Annotation, 0, len(rows))
	for _, row := range rows {
		feature, annotation, err := FormatForLoad(row, pathIndex, split)
		if err != nil {
			return nil, nil, err
		}
		features = append(features, *feature)
		annotations = append(annotations, *annotation)
	}
	return features, annotations, nil
}

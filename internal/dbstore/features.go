package dbstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Feature is one benchmark task row.
type Feature struct {
	TaskID      string
	DatasetType string
	Question    string
	Level       string
	FinalAnswer string
	FileName    string
	FilePath    string
}

// Annotation is the annotator-metadata row for one task. The answer string
// is excised from Steps before it gets here.
type Annotation struct {
	TaskID        string
	Steps         string
	NumberOfSteps string
	TimeTaken     string
	Tools         string
	NumberOfTools string
}

// InsertFeatures loads task rows one statement at a time. A failing row
// aborts the batch with the rows before it already committed.
func (s *Store) InsertFeatures(ctx context.Context, features []Feature) error {
	return s.withConn(ctx, func(conn *pgx.Conn) error {
		for _, f := range features {
			_, err := conn.Exec(ctx, `
				INSERT INTO gaia_features
					(task_id, dataset_type, question, level, final_answer, file_name, file_path)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				f.TaskID, f.DatasetType, f.Question, f.Level, f.FinalAnswer, f.FileName, f.FilePath)
			if err != nil {
				return fmt.Errorf("insert feature %s: %w", f.TaskID, err)
			}
		}
		s.log.Info().Int("rows", len(features)).Msg("Features loaded")
		return nil
	})
}

// InsertAnnotations loads annotation rows; every task must already have its
// feature row committed.
func (s *Store) InsertAnnotations(ctx context.Context, annotations []Annotation) error {
	return s.withConn(ctx, func(conn *pgx.Conn) error {
		for _, a := range annotations {
			_, err := conn.Exec(ctx, `
				INSERT INTO gaia_annotations
					(task_id, steps, number_of_steps, time_taken, tools, number_of_tools)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				a.TaskID, a.Steps, a.NumberOfSteps, a.TimeTaken, a.Tools, a.NumberOfTools)
			if err != nil {
				return fmt.Errorf("insert annotation %s: %w", a.TaskID, err)
			}
		}
		s.log.Info().Int("rows", len(annotations)).Msg("Annotations loaded")
		return nil
	})
}

// ListTaskIDs returns every loaded task id in insertion-independent sorted
// order, for the prompt picker.
func (s *Store) ListTaskIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT task_id FROM gaia_features ORDER BY task_id`)
		if err != nil {
			return fmt.Errorf("query task ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// GetFeature returns one task row, ErrNotFound if the id is unknown.
func (s *Store) GetFeature(ctx context.Context, taskID string) (*Feature, error) {
	var f Feature
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		err := conn.QueryRow(ctx, `
			SELECT task_id, dataset_type, question, level, final_answer,
				COALESCE(file_name, ''), COALESCE(file_path, '')
			FROM gaia_features WHERE task_id = $1`, taskID,
		).Scan(&f.TaskID, &f.DatasetType, &f.Question, &f.Level, &f.FinalAnswer,
			&f.FileName, &f.FilePath)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetAnnotation returns one task's annotation row, ErrNotFound if absent.
func (s *Store) GetAnnotation(ctx context.Context, taskID string) (*Annotation, error) {
	var a Annotation
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		err := conn.QueryRow(ctx, `
			SELECT task_id, steps, number_of_steps, time_taken, tools, number_of_tools
			FROM gaia_annotations WHERE task_id = $1`, taskID,
		).Scan(&a.TaskID, &a.Steps, &a.NumberOfSteps, &a.TimeTaken, &a.Tools, &a.NumberOfTools)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: annotation for task %s", ErrNotFound, taskID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

package annotations

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Record is one decoded annotation line after cleaning. Values are strings,
// string lists, or nested Records.
type Record map[string]interface{}

var whitespaceRun = regexp.MustCompile(`[\x00-\x1f\s]+`)

// ParseAnnotations reads a JSON-lines annotation file and returns one
// cleaned Record per well-formed line. Malformed lines are logged and
// skipped; they never fail the batch.
func ParseAnnotations(path string, log zerolog.Logger) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			log.Error().Err(err).Int("line", lineNo).Msg("Skipping malformed annotation line")
			continue
		}
		records = append(records, CleanData(record))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read annotation file: %w", err)
	}
	return records, nil
}

// CleanData recursively cleans every value in the record: nulls become "",
// strings are cleaned in place, list elements are cleaned or stringified,
// and anything else is stringified. Applying it twice is a no-op.
func CleanData(data Record) Record {
	for key, value := range data {
		data[key] = cleanValue(value)
	}
	return data
}

func cleanValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return cleanString(v)
	case map[string]interface{}:
		return map[string]interface{}(CleanData(v))
	case Record:
		return CleanData(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = cleanString(s)
			} else {
				out[i] = stringify(item)
			}
		}
		return out
	default:
		return stringify(v)
	}
}

// cleanString strips quote characters, collapses control and whitespace
// runs to single spaces and trims the ends. Quotes go first so collapsing
// sees the runs they would otherwise split.
func cleanString(value string) string {
	out := strings.ReplaceAll(value, `"`, "")
	out = whitespaceRun.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

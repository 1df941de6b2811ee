package extract

import (
	"regexp"
	"strings"
)

// cellSplit matches the gutters between table cells in extracted page text:
// a tab, or a run of two or more spaces.
var cellSplit = regexp.MustCompile(`\t+| {2,}`)

// detectTables finds column-aligned regions in page text. Consecutive lines
// that split into the same number of cells (at least two) form one table;
// the first such line becomes the header row. Lines that split differently
// end the current table.
func detectTables(text string) []TableData {
	var tables []TableData
	var current TableData
	width := 0

	flush := func() {
		// A single aligned line is not a table.
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
		width = 0
	}

	for _, line := range strings.Split(text, "\n") {
		cells := splitCells(line)
		if len(cells) < 2 {
			flush()
			continue
		}
		if width != 0 && len(cells) != width {
			flush()
		}
		width = len(cells)
		current = append(current, cells)
	}
	flush()

	return tables
}

func splitCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var cells []string
	for _, cell := range cellSplit.Split(trimmed, -1) {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

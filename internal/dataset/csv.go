package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/neuroforge/erpbench/internal/sigproc"
)

// #region session

// readSessionCSV parses a board data file: one line per sample, one
// tab- or comma-separated column per board row. The result is row-major,
// rows[boardRow][sample].
func readSessionCSV(dir, name string) ([][]float64, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		fields := splitFields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if rows == nil {
			rows = make([][]float64, len(fields))
		}
		if len(fields) != len(rows) {
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", sigproc.ErrShapeMismatch, line, len(fields), len(rows))
		}
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			rows[i] = append(rows[i], v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(rows) < 3 {
		return nil, fmt.Errorf("%w: session has %d board rows, need a counter, data and a timestamp row", sigproc.ErrShapeMismatch, len(rows))
	}
	return rows, nil
}

// #endregion session

// #region events

// rawEvent is one row of an events sidecar file before stim synthesis.
type rawEvent struct {
	label     int
	timestamp float64
}

// readEventsCSV parses an events sidecar: a header line, then one row per
// stimulus with the condition label in the second column and the sample
// timestamp in the last.
func readEventsCSV(dir, name string) ([]rawEvent, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var out []rawEvent
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := splitFields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: events line %d has %d columns, want at least 2", sigproc.ErrShapeMismatch, line, len(fields))
		}
		label, err := strconv.Atoi(fields[1])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("events line %d label: %w", line, err)
		}
		ts, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("events line %d timestamp: %w", line, err)
		}
		out = append(out, rawEvent{label: label, timestamp: ts})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return out, nil
}

// #endregion events

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '\t' || r == ',' || r == ' '
	})
}

// Package quiz scores submitted answers against a static answer key and
// applies earned points to the leaderboard.
package quiz

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Key maps question IDs to their expected solutions.
type Key map[string]string

// LoadKey reads the answer key from a CSV file of question_id,solution rows.
// A header row named "question_id" is skipped if present.
func LoadKey(path string) (Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answer key: %w", err)
	}
	defer f.Close()

	key, err := ParseKey(f)
	if err != nil {
		return nil, fmt.Errorf("parse answer key %s: %w", path, err)
	}
	return key, nil
}

// ParseKey reads question_id,solution rows from r.
func ParseKey(r io.Reader) (Key, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	key := make(Key)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id := strings.TrimSpace(record[0])
		if line == 1 && strings.EqualFold(id, "question_id") {
			continue
		}
		if id == "" {
			return nil, fmt.Errorf("line %d: empty question id", line)
		}
		if _, exists := key[id]; exists {
			return nil, fmt.Errorf("line %d: duplicate question id %q", line, id)
		}
		key[id] = strings.TrimSpace(record[1])
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("answer key is empty")
	}
	return key, nil
}

// Check reports whether the given answer matches the solution for questionID.
// Comparison ignores case and surrounding whitespace. Unknown questions are
// never correct.
func (k Key) Check(questionID, answer string) bool {
	solution, ok := k[strings.TrimSpace(questionID)]
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), solution)
}

package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type RecordType string

const (
	Surveys     RecordType = "surveys"
	Prompts     RecordType = "prompts"
	Selections  RecordType = "selections"
	Ratings     RecordType = "ratings"
	Timing      RecordType = "timing"
	Completions RecordType = "completions"
)

// ErrSchemaMismatch is returned when a row or an existing log header disagrees with the
// declared columns of its record type.
var ErrSchemaMismatch = errors.New("records: schema mismatch")

var ErrUnknownRecordType = errors.New("records: unknown record type")

var schemas = map[RecordType][]string{
	Surveys: {"timestamp", "prolificId", "genAiExperience", "textToImageExperience", "toolsUsed", "otherTools"},
	Prompts: {
		"timestamp", "prolificId", "trialIndex", "condition", "theme", "promptCount", "prompts",
		"selectedPrompt", "isPractice", "conditionOrder", "firstKeypressLatency", "totalResponseTime", "generated",
	},
	Selections:  {"timestamp", "prolificId", "trialIndex", "condition", "theme", "selectedPrompt", "isPractice", "conditionOrder"},
	Ratings:     {"timestamp", "prolificId", "trialIndex", "theme", "condition", "prompt", "creativityRating", "intentionRating"},
	Timing:      {"timestamp", "prolificId", "trialIndex", "phase", "firstKeypressLatency", "totalResponseTime"},
	Completions: {"timestamp", "prolificId", "completionCode"},
}

// Row is one log line keyed by column name.
type Row map[string]string

// Columns returns a copy of the declared columns for rt.
func Columns(rt RecordType) ([]string, error) {
	cols, ok := schemas[rt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordType, rt)
	}
	return append([]string(nil), cols...), nil
}

func logKey(rt RecordType) string { return string(rt) + ".csv" }

// conform orders row by cols. The row must carry exactly the declared columns.
func conform(cols []string, row Row) ([]string, error) {
	out := make([]string, len(cols))
	for i, c := range cols {
		v, ok := row[c]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrSchemaMismatch, c)
		}
		out[i] = v
	}
	if len(row) != len(cols) {
		extra := make([]string, 0)
		declared := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			declared[c] = struct{}{}
		}
		for k := range row {
			if _, ok := declared[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: undeclared columns %s", ErrSchemaMismatch, strings.Join(extra, ","))
	}
	return out, nil
}

func sameHeader(cols, header []string) bool {
	if len(cols) != len(header) {
		return false
	}
	for i := range cols {
		if cols[i] != header[i] {
			return false
		}
	}
	return true
}

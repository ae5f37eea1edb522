package logs

import (
	"encoding/json"
	"strings"

	"thermolog/internal/logging"
)

// Filter selects JSON log records. Zero fields match everything. Lines that
// are not JSON only pass an empty filter.
type Filter struct {
	EntryID   int64
	EventType string
	MinLevel  string
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

func (f Filter) empty() bool {
	return f.EntryID == 0 && f.EventType == "" && f.MinLevel == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if f.EntryID != 0 {
		id, ok := record[logging.FieldEntryID].(float64)
		if !ok || int64(id) != f.EntryID {
			return false
		}
	}
	if f.EventType != "" {
		if event, _ := record[logging.FieldEventType].(string); event != f.EventType {
			return false
		}
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToUpper(f.MinLevel)]
		level, _ := record["level"].(string)
		got, known := levelRank[strings.ToUpper(level)]
		if ok && (!known || got < want) {
			return false
		}
	}
	return true
}

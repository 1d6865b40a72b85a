package environments

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rahul/autopilot/internal/executor"
)

// ProcessResult is returned by process data.
type ProcessResult struct {
	Operation string `json:"operation"`
	Original  any    `json:"original"`
	Result    any    `json:"result"`
}

// TextStats is the count of a text input.
type TextStats struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Lines      int `json:"lines"`
}

// ProcessData applies a filter, sort or count operation to step data. Any
// other operation, or an input of the wrong shape, yields a descriptive
// placeholder result instead of an error.
func ProcessData(data any, operation string, log executor.LogFunc) *ProcessResult {
	log("Processing data with operation: " + operation)

	list, isList := asList(data)
	var result any

	switch strings.ToLower(operation) {
	case "filter":
		if isList {
			kept := make([]any, 0, len(list))
			for _, item := range list {
				if keep(item) {
					kept = append(kept, item)
				}
			}
			result = kept
			log(fmt.Sprintf("Filtered data: %d items remaining", len(kept)))
		}

	case "sort":
		if isList {
			sorted := make([]any, len(list))
			copy(sorted, list)
			sort.SliceStable(sorted, func(i, j int) bool {
				return fmt.Sprint(sorted[i]) < fmt.Sprint(sorted[j])
			})
			result = sorted
			log(fmt.Sprintf("Sorted %d items", len(sorted)))
		}

	case "count":
		if isList {
			result = len(list)
			log(fmt.Sprintf("Counted %d items", len(list)))
		} else if s, ok := data.(string); ok {
			stats := TextStats{
				Characters: utf8.RuneCountInString(s),
				Words:      len(strings.Fields(s)),
				Lines:      strings.Count(s, "\n") + 1,
			}
			result = stats
			log(fmt.Sprintf("Analyzed text: %d chars, %d words, %d lines", stats.Characters, stats.Words, stats.Lines))
		}

	default:
		log("Completed " + operation + " operation")
	}

	if result == nil {
		result = "Processed data using " + operation
	}
	return &ProcessResult{Operation: operation, Original: data, Result: result}
}

func asList(data any) ([]any, bool) {
	switch t := data.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// keep is the filter predicate: strings longer than five characters, and
// records rated above 4.
func keep(item any) bool {
	switch t := item.(type) {
	case string:
		return utf8.RuneCountInString(t) > 5
	case map[string]any:
		r, ok := rating(t["rating"])
		return ok && r > 4
	}
	return false
}

// rating reads numbers and strings such as "4.5/5".
func rating(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		end := 0
		for end < len(t) && (t[end] == '.' || (t[end] >= '0' && t[end] <= '9')) {
			end++
		}
		f, err := strconv.ParseFloat(t[:end], 64)
		return f, err == nil
	}
	return 0, false
}

package logger

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// messager is implemented by zerr errors: Message reports the error's own
// text without its wrapped cause.
type messager interface {
	Message() string
}

// metadataCarrier is implemented by zerr errors carrying key/value context.
type metadataCarrier interface {
	Metadata() map[string]any
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// collectErrorEntries walks err from the outside in. zerr levels contribute
// their own message and metadata; the first foreign error ends the walk with
// its full text. Consecutive levels with the same message are folded.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry

	for current := err; current != nil; {
		m, ok := current.(messager)
		if !ok {
			entries = appendEntry(entries, ErrorEntry{Message: current.Error()})
			break
		}

		entry := ErrorEntry{Message: m.Message()}
		if mc, ok := current.(metadataCarrier); ok && len(mc.Metadata()) > 0 {
			entry.Metadata = mc.Metadata()
		}
		entries = appendEntry(entries, entry)
		current = errors.Unwrap(current)
	}

	return entries
}

func appendEntry(entries []ErrorEntry, e ErrorEntry) []ErrorEntry {
	if n := len(entries); n > 0 && entries[n-1].Message == e.Message {
		if len(e.Metadata) > 0 {
			merged := make(map[string]any, len(entries[n-1].Metadata)+len(e.Metadata))
			for k, v := range e.Metadata {
				merged[k] = v
			}
			for k, v := range entries[n-1].Metadata {
				merged[k] = v
			}
			entries[n-1].Metadata = merged
		}
		return entries
	}
	return append(entries, e)
}

// formatErrorEntries renders entries as:
//
//	Error: outer
//	       key: value
//
//	  Caused by:
//	    → inner
func formatErrorEntries(entries []ErrorEntry) string {
	lines := make([]string, 0, len(entries)*2)

	for i, e := range entries {
		head, indent := "Error: ", "       "
		if i > 0 {
			head, indent = "    → ", "      "
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
		}

		msgLines := strings.Split(e.Message, "\n")
		lines = append(lines, head+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}

		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, k, e.Metadata[k]))
		}
	}

	return strings.Join(lines, "\n")
}

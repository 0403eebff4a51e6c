// Package auditlog builds the append-only notification trail stored next to each order line.
package auditlog

import (
	"strings"
	"time"
)

// StampLayout is the compact day/month hour:minute stamp appended to each entry.
const StampLayout = "02/01 15:04"

// Separator joins consecutive entries.
const Separator = " | "

// Stamp formats now in its own location.
func Stamp(now time.Time) string {
	return now.Format(StampLayout)
}

// Entry renders a single entry.
func Entry(message string, now time.Time) string {
	return message + " (" + Stamp(now) + ")"
}

// AppendEntry returns existing with a new timestamped entry appended. Both strings are kept
// verbatim; a whitespace-only existing log counts as empty and yields just the entry. It
// performs no I/O.
func AppendEntry(existing, message string, now time.Time) string {
	entry := Entry(message, now)
	if strings.TrimSpace(existing) == "" {
		return entry
	}
	return existing + Separator + entry
}

// Entries splits a log back into its entries.
func Entries(log string) []string {
	if strings.TrimSpace(log) == "" {
		return nil
	}
	parts := strings.Split(log, Separator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

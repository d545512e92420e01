package util

import (
	"strings"
	"time"
)

// SplitList splits a comma separated parameter value, trimming blanks and dropping empty entries
func SplitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ElapsedMs returns the milliseconds elapsed since start
func ElapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

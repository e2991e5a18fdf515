package pkg

import "strings"

// SplitAndTrim splits a comma separated list, dropping empty entries.
func SplitAndTrim(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

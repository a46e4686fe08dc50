package redis

import "strings"

// ParseInfo parses the text returned by Info into a field map.
//
// The text holds "field:value" lines, "# Section" headers and blank lines.
// Headers and blank lines are skipped; a field seen twice keeps its last value.
func ParseInfo(info string) map[string]string {
	fields := make(map[string]string)
	for line := range strings.Lines(info) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" || line[0] == '#' {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[name] = value
	}
	return fields
}

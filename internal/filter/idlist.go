package filter

import (
	"fmt"
	"os"
	"strings"
)

// LoadIDs reads a test-id list file: one id per line, blank lines and
// lines starting with # ignored, duplicates removed.
func LoadIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading test id list %s: %w", path, err)
	}
	lines := strings.Split(string(data), "\n")
	seen := make(map[string]struct{}, len(lines))
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := strings.ToUpper(line)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			result = append(result, line)
		}
	}
	return result, nil
}

package core

import (
	"fmt"
	"sort"
	"strings"
)

// fallbackCommitMessage is used when a commit is made with no parsed changes.
const fallbackCommitMessage = "Automatic update: periodic sync"

// ComposeCommitMessage synthesizes a commit message from porcelain status
// lines, reporting the file count and the top three file extensions by
// occurrence. Ties are broken by encounter order.
func ComposeCommitMessage(statusLines []string) string {
	type extCount struct {
		ext   string
		count int
	}

	var order []string
	counts := make(map[string]int)
	files := 0

	for _, line := range statusLines {
		name := trailingFilename(line)
		if name == "" {
			continue
		}
		files++

		ext := name
		if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
			ext = name[idx+1:]
		}
		if _, seen := counts[ext]; !seen {
			order = append(order, ext)
		}
		counts[ext]++
	}

	if files == 0 {
		return fallbackCommitMessage
	}

	ranked := make([]extCount, 0, len(order))
	for _, ext := range order {
		ranked = append(ranked, extCount{ext: ext, count: counts[ext]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	parts := make([]string, len(ranked))
	for i, rc := range ranked {
		parts[i] = fmt.Sprintf("%d %s", rc.count, rc.ext)
	}

	return fmt.Sprintf("Automatic update: %d files changed (%s)", files, strings.Join(parts, ", "))
}

// CountChangedFiles counts the porcelain status lines a filename can be parsed
// from, so the reported file count always matches the commit message.
func CountChangedFiles(statusLines []string) int {
	files := 0
	for _, line := range statusLines {
		if trailingFilename(line) != "" {
			files++
		}
	}
	return files
}

// trailingFilename extracts the filename from one porcelain status line.
// Rename lines ("R  old -> new") yield the destination path.
func trailingFilename(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	if idx := strings.LastIndex(trimmed, " -> "); idx >= 0 {
		return strings.TrimSpace(trimmed[idx+4:])
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}

package ingest

import (
	"strings"

	"docchat/internal/domain"
)

var chartWords = []string{"chart", "graph", "x-axis", "y-axis", "legend", "plotted"}

// ClassifyContent tags transcribed page content. A page carrying a markdown
// table is tagged as a table even when prose surrounds it; otherwise pages
// describing charts are tagged as charts, and everything else as text.
func ClassifyContent(content string) string {
	if hasMarkdownTable(content) {
		return domain.ContentTypeTable
	}
	if mentionsChart(content) {
		return domain.ContentTypeChart
	}
	return domain.ContentTypeText
}

func hasMarkdownTable(content string) bool {
	lines := strings.Split(content, "\n")
	for i := 0; i+1 < len(lines); i++ {
		if isTableRow(lines[i]) && isSeparatorRow(lines[i+1]) {
			return true
		}
	}
	return false
}

func isTableRow(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "|") && strings.Count(line, "|") >= 2
}

// isSeparatorRow matches the |---|:---:| row under a table header.
func isSeparatorRow(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") || !strings.Contains(line, "-") {
		return false
	}
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}

func mentionsChart(content string) bool {
	lower := strings.ToLower(content)
	for _, w := range chartWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

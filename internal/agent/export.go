package agent

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/username/deskchat/internal/domain/entities"
)

// Export detection: when a user message asks for an export in a known
// format, the send response carries download metadata alongside the reply.

var exportIntentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bexport\b`),
	regexp.MustCompile(`(?i)\bdownload\b`),
	regexp.MustCompile(`(?i)\bsave\s+(as|to)\s+a?\s*file\b`),
}

// formatPatterns map keywords to an export format; more specific first
var formatPatterns = []struct {
	pattern *regexp.Regexp
	format  string
}{
	{regexp.MustCompile(`(?i)\b(word|docx|doc\s*file)\b`), "docx"},
	{regexp.MustCompile(`(?i)\b(excel|xlsx)\b`), "xlsx"},
	{regexp.MustCompile(`(?i)\bpdf\b`), "pdf"},
	{regexp.MustCompile(`(?i)\b(markdown|md)\b`), "md"},
}

// DetectExportFormat returns the requested export format, or "" when the
// message carries no export intent or no recognizable format
func DetectExportFormat(content string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}

	intent := false
	for _, p := range exportIntentPatterns {
		if p.MatchString(text) {
			intent = true
			break
		}
	}
	if !intent {
		return ""
	}

	for _, fp := range formatPatterns {
		if fp.pattern.MatchString(text) {
			return fp.format
		}
	}
	return ""
}

// BuildExportRequest prepares the export metadata for a conversation
func BuildExportRequest(conversationID int64, format string) *entities.ExportRequest {
	filename := fmt.Sprintf("conversation_%d_%s.%s", conversationID, time.Now().UTC().Format("20060102"), format)
	return &entities.ExportRequest{
		Format:      format,
		DownloadURL: fmt.Sprintf("/exports/%s", filename),
		Filename:    filename,
	}
}

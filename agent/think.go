package agent

import (
	"regexp"
	"strings"
)

var thinkPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// splitThinking removes <think> blocks from a model answer. It returns the
// trimmed reasoning segments and the remaining text.
func splitThinking(content string) (thoughts []string, text string) {
	for _, m := range thinkPattern.FindAllStringSubmatch(content, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			thoughts = append(thoughts, t)
		}
	}
	return thoughts, strings.TrimSpace(thinkPattern.ReplaceAllString(content, ""))
}

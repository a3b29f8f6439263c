package provider

import (
	"fmt"
	"regexp"
	"strings"
)

// SystemPrompt is sent as the system message of every request.
const SystemPrompt = "You are a professional translator. Provide accurate and natural translations."

// BuildPrompt renders texts as a numbered list with instructions to answer
// in the same numbered format.
func BuildPrompt(texts []string, sourceLang, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate the following numbered texts from %s to %s.\n", sourceLang, targetLang)
	b.WriteString("Provide ONLY the translations in the same numbered format, one per line.\n")
	b.WriteString("Do not add any explanations or additional text.\n\n")
	b.WriteString("Texts to translate:\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	b.WriteString("\nTranslations:")
	return b.String()
}

var numberedLine = regexp.MustCompile(`^\d+\.\s*(.+)$`)

// ParseNumbered turns a numbered-list answer into exactly len(sources)
// translations. Blank lines are dropped and a leading "N." marker is
// stripped. Missing trailing lines are filled with the corresponding source
// text and their positions reported in Result.Fallback; surplus lines are
// discarded.
func ParseNumbered(content string, sources []string) Result {
	texts := make([]string, 0, len(sources))
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			line = strings.TrimSpace(m[1])
		}
		texts = append(texts, line)
	}

	var res Result
	for i := len(texts); i < len(sources); i++ {
		texts = append(texts, sources[i])
		res.Fallback = append(res.Fallback, i)
	}
	res.Texts = texts[:len(sources)]
	return res
}

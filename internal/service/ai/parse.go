package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	listNumber   = regexp.MustCompile(`^\d+[.)]\s*`)
	listBullet   = regexp.MustCompile(`^[-*•]\s*`)
	trailingEnum = regexp.MustCompile(`\s*(\d+[.)]|[-•])\s*$`)
)

// minListItem drops headings and stray fragments such as "Sure!".
const minListItem = 10

// ParseList extracts list items from a numbered or bulleted reply.
//
// Behavior:
//   - Strips "1." / "1)" numbering, "-", "*" and "•" bullets and surrounding quotes.
//   - Lines of minListItem characters or fewer are skipped.
//   - At most max items are returned (max <= 0 means no cap).
//   - When no line qualifies, the whole trimmed reply is the single item;
//     a blank reply yields nil.
//
// Example:
//
//	ParseList("1. \"What are you building?\"\n2) Favourite editor?", 3)
//	// ["What are you building?", "Favourite editor?"]
func ParseList(reply string, max int) []string {
	var items []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = listNumber.ReplaceAllString(line, "")
		line = listBullet.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'“”`)
		line = strings.TrimSpace(line)
		if len(line) <= minListItem {
			continue
		}
		items = append(items, line)
		if max > 0 && len(items) == max {
			break
		}
	}
	if len(items) == 0 {
		if r := strings.TrimSpace(reply); r != "" {
			return []string{r}
		}
		return nil
	}
	return items
}

// ExtractJSONObject returns the first balanced {...} substring of s.
// Braces inside JSON strings (including escaped quotes) are ignored.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := balancedEnd(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// DecodeJSONObject decodes the first JSON object found in reply into T.
// It returns def and false when no object is found or it does not decode.
func DecodeJSONObject[T any](reply string, def T) (T, bool) {
	obj, ok := ExtractJSONObject(reply)
	if !ok {
		return def, false
	}
	var out T
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return def, false
	}
	return out, true
}

// DateIdea is one suggested date.
type DateIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ParseDateIdeas reads "**Title**: description" blocks.
//
// Behavior:
//   - Text before the first "**" is ignored.
//   - A trailing list marker left over from the next item is trimmed.
//   - A dangling title without a description is dropped.
//   - At most max ideas are returned (max <= 0 means no cap).
func ParseDateIdeas(reply string, max int) []DateIdea {
	parts := strings.Split(reply, "**")
	if len(parts) < 3 {
		return nil
	}
	parts = parts[1:]

	var ideas []DateIdea
	for i := 0; i+1 < len(parts); i += 2 {
		title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(parts[i]), ":"))
		desc := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[i+1]), ":"))
		desc = strings.TrimSpace(trailingEnum.ReplaceAllString(desc, ""))
		if title == "" || desc == "" {
			continue
		}
		ideas = append(ideas, DateIdea{Title: title, Description: desc})
		if max > 0 && len(ideas) == max {
			break
		}
	}
	return ideas
}

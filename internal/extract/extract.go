// Package extract pulls structured JSON blocks out of loosely formatted
// model output: fenced, prose-wrapped, or both. It is the single parsing
// front door for every consumer that expects structured output.
package extract

import "strings"

// Block returns the first syntactically balanced {...} or [...] region in
// raw, after stripping leading/trailing markdown fence markers. Brackets that
// appear inside quoted strings are ignored during matching. ok is false when
// no balanced region exists; callers fall back to their own defaults rather
// than treating that as an error.
func Block(raw string) (string, bool) {
	text := Unfence(raw)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if end, ok := matchBalanced(text, i); ok {
			return text[i:end], true
		}
	}
	return "", false
}

// Unfence strips a leading markdown code fence (with or without a language
// tag) and a trailing closing fence, returning the trimmed inner text.
// Text without fences passes through trimmed.
func Unfence(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		rest := text[3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			text = rest[nl+1:]
		} else {
			text = strings.TrimPrefix(rest, "json")
		}
		text = strings.TrimSpace(text)
	}
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}
	return text
}

// matchBalanced scans forward from the opening bracket at start and returns
// the exclusive end index of the balanced region. Mixed nesting that closes
// out of order ("[ { ]") fails the match.
func matchBalanced(text string, start int) (int, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return 0, false
			}
			top := stack[len(stack)-1]
			if (c == '}' && top != '{') || (c == ']' && top != '[') {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

package planner

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// The repairer turns near-JSON from the backend into a decoded value. It is
// a chain of pure transformations tried in strictly increasing
// aggressiveness:
//
//  1. strip code fences, parse directly
//  2. extract the largest balanced {...} block and parse that
//  3. normalize syntax (quote style, bare keys, bracket balance) and re-parse
//  4. interpret the text with a permissive literal grammar
//
// Each failed attempt records the parse error with the deepest offset; if
// everything fails the caller gets an UnparseableOutputError carrying that
// best attempt. No attempt touches the network or any mutable state:
// identical input always produces identical output or identical failure.

// safeParseJSON runs the full strategy chain and returns the decoded value.
func safeParseJSON(text string) (any, error) {
	cleaned := stripCodeFences(text)

	var best parseAttempt
	if v, ok := best.try(cleaned); ok {
		return v, nil
	}

	extracted, ok := extractBalancedObject(cleaned)
	if ok {
		if v, ok := best.try(extracted); ok {
			return v, nil
		}
		if v, ok := best.try(normalizeSyntax(extracted)); ok {
			return v, nil
		}
	}

	if v, ok := best.try(normalizeSyntax(cleaned)); ok {
		return v, nil
	}

	if v, err := parseLooseLiteral(cleaned); err == nil {
		return v, nil
	}

	return nil, best.fail()
}

// parseAttempt tracks the attempt that progressed furthest into its input.
type parseAttempt struct {
	text   string
	offset int64
	err    error
}

func (a *parseAttempt) try(text string) (any, bool) {
	var v any
	err := json.Unmarshal([]byte(text), &v)
	if err == nil {
		return v, true
	}
	offset := parseErrorOffset(err)
	if a.err == nil || offset > a.offset {
		a.text = text
		a.offset = offset
		a.err = err
	}
	return nil, false
}

func (a *parseAttempt) fail() error {
	partial := a.text
	if end := a.offset + 10; end < int64(len(partial)) {
		partial = partial[:end]
	}
	err := a.err
	if err == nil {
		err = errors.New("no parse attempt recorded")
	}
	return &UnparseableOutputError{Partial: partial, Offset: a.offset, Err: err}
}

func parseErrorOffset(err error) int64 {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return syntax.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return 0
}

// stripCodeFences removes a leading ```json / ``` marker and a trailing ```
// marker, the wrapping models add despite instructions not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}

// extractBalancedObject returns the largest balanced brace-delimited
// substring starting at the first '{'. Depth is tracked per character, with
// string literals and escapes skipped, rather than by regex.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// normalizeSyntax applies the independent repair heuristics in sequence.
// Each is best-effort; together they recover the common near-JSON defects
// models emit (single quotes, bare keys, unterminated structures).
func normalizeSyntax(s string) string {
	s = normalizeQuotes(s)
	s = quoteBareKeys(s)
	s = balanceBrackets(s)
	return s
}

var singleQuoted = regexp.MustCompile(`'[^']*'`)

// normalizeQuotes rewrites single-quoted string literals to double-quoted
// form where unambiguous: the literal must not sit directly against an
// existing double quote and must not itself contain one.
func normalizeQuotes(s string) string {
	matches := singleQuoted.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		inner := s[start+1 : end-1]
		adjacentQuote := (start > 0 && s[start-1] == '"') || (end < len(s) && s[end] == '"')
		if adjacentQuote || strings.Contains(inner, `"`) {
			continue
		}
		b.WriteString(s[prev:start])
		b.WriteByte('"')
		b.WriteString(inner)
		b.WriteByte('"')
		prev = end
	}
	b.WriteString(s[prev:])
	return b.String()
}

var bareKey = regexp.MustCompile(`([\{,]\s*)([A-Za-z0-9_\-]+)(\s*:)`)

// quoteBareKeys wraps unquoted identifier keys in double quotes.
func quoteBareKeys(s string) string {
	return bareKey.ReplaceAllString(s, `$1"$2"$3`)
}

// balanceBrackets appends exactly the closing characters needed to balance
// bracket and brace counts, then ensures the text ends in a closing brace
// (trimming a dangling comma first). This is the truncation repair: it
// yields valid JSON whenever the cut fell on a structural boundary.
func balanceBrackets(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(s, ",") {
		s = strings.TrimRight(s[:len(s)-1], " \t\r\n")
	}
	if open, closed := strings.Count(s, "["), strings.Count(s, "]"); open > closed {
		s += strings.Repeat("]", open-closed)
	}
	if open, closed := strings.Count(s, "{"), strings.Count(s, "}"); open > closed {
		s += strings.Repeat("}", open-closed)
	}
	if strings.HasPrefix(s, "{") && !strings.HasSuffix(s, "}") {
		s += "}"
	}
	return s
}

// RecoveredStructure is the validated shape extracted from backend text: the
// task sequence plus a summary. It is produced once per Generate call and
// consumed immediately by the synthesizer.
type RecoveredStructure struct {
	Tasks   []any
	Summary string
}

// parsePlan decodes text through the repair chain and shapes it into a
// RecoveredStructure. Task entries are kept as-is here; per-entry
// validation (and skipping) happens during synthesis.
func parsePlan(text string) (*RecoveredStructure, error) {
	v, err := safeParseJSON(text)
	if err != nil {
		return nil, err
	}
	return structureFrom(v, text)
}

// structureFrom shapes an already-decoded value into a RecoveredStructure.
func structureFrom(v any, source string) (*RecoveredStructure, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &UnparseableOutputError{
			Partial: snippet(source, 200),
			Err:     errors.New("top-level value is not an object"),
		}
	}

	rs := &RecoveredStructure{}
	if tasks, ok := obj["tasks"].([]any); ok {
		rs.Tasks = tasks
	}
	if summary, ok := obj["plan_summary"].(string); ok {
		rs.Summary = summary
	}
	return rs, nil
}

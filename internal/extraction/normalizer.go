// Package extraction turns free-text diet plans into notification rules.
//
// The pipeline runs in fixed stages: Normalize cleans the raw text, Extract
// walks it line by line pairing time tokens with activity text, InferDays
// assigns a day set to activities without explicit day context, and
// BuildRules groups activities into deduplicated rules. Each stage degrades
// gracefully: malformed input produces an empty result, never an error that
// aborts the request.
package extraction

import (
	"regexp"
	"strings"
)

var (
	// Soaking/prep annotations arrive wrapped in braces or square brackets,
	// e.g. "{soaked overnight}" or "[pre-soak]". They carry no schedulable
	// content.
	bracedSpanRe  = regexp.MustCompile(`\{[^{}]*\}`)
	bracketSpanRe = regexp.MustCompile(`\[[^\[\]]*\]`)

	runSpacesRe    = regexp.MustCompile(`[ \t]+`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// Normalize cleans raw diet text for line-oriented parsing. It strips stray
// backslashes left by upstream export tools, removes brace/bracket
// annotation spans, collapses runs of spaces and tabs, and squeezes repeated
// blank lines. Line structure is preserved.
//
// Normalize is idempotent and never fails; empty input yields "".
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "")

	// Annotation spans can nest one level ("{a {b}}" leaves "{a }" after one
	// pass); iterate to a fixpoint so the result is stable under re-runs.
	for {
		next := bracedSpanRe.ReplaceAllString(s, " ")
		next = bracketSpanRe.ReplaceAllString(next, " ")
		if next == s {
			break
		}
		s = next
	}

	s = runSpacesRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

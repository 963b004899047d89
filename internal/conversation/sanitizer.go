package conversation

import (
	"regexp"
	"strings"
)

// SanitizeResult carries the cleaned reply plus the identifiers of the rules
// that fired, for metrics and event logging.
type SanitizeResult struct {
	Text    string
	Applied []string
}

// sanitizeRule is one ordered (pattern, replacement) substitution.
type sanitizeRule struct {
	re          *regexp.Regexp
	replacement string
	id          string
}

// baseSanitizeRules enforce the hard constraints the generative backend might
// violate. Greeting rules are anchored at the start of the reply; the trailer
// rule deletes from the banned phrase to the end of its line. The patterns
// are disjoint, so their relative order does not change the outcome, but the
// table is evaluated in order all the same.
var baseSanitizeRules = []sanitizeRule{
	{regexp.MustCompile(`(?i)^здравствуй(?:те)?[.!]?\s*`), "", "greeting:zdravstvuyte"},
	{regexp.MustCompile(`(?i)^привет[.!]?\s*`), "", "greeting:privet"},
	{regexp.MustCompile(`(?i)^добр(?:ый (?:день|вечер)|ое утро)[.!]?\s*`), "", "greeting:dobryy"},
	{regexp.MustCompile(`(?i)цель клиента:.*`), "", "trailer:client_goal"},
}

// Sanitizer removes disallowed phrases from candidate replies via an ordered
// list of regular-expression substitutions. It is total: input with no
// matches comes back unchanged after trimming.
type Sanitizer struct {
	rules []sanitizeRule
}

// NewSanitizer builds a sanitizer with the canonical rule set plus optional
// banned topic words. Topic words are deleted wherever they occur,
// case-insensitively; surrounding punctuation is left alone, which can leave
// stray whitespace behind.
func NewSanitizer(bannedTopics ...string) *Sanitizer {
	rules := make([]sanitizeRule, 0, len(baseSanitizeRules)+len(bannedTopics))
	rules = append(rules, baseSanitizeRules...)
	for _, topic := range bannedTopics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		rules = append(rules, sanitizeRule{
			re:          regexp.MustCompile(`(?i)` + regexp.QuoteMeta(topic)),
			replacement: "",
			id:          "topic:" + strings.ToLower(topic),
		})
	}
	return &Sanitizer{rules: rules}
}

// Sanitize applies the rule table in order and trims the result. The output
// never starts with a greeting token and never contains the banned trailer
// phrase in its documented surface forms. This is a syntactic guarantee only;
// paraphrases pass through.
func (s *Sanitizer) Sanitize(text string) SanitizeResult {
	var applied []string
	for _, rule := range s.rules {
		if !rule.re.MatchString(text) {
			continue
		}
		text = rule.re.ReplaceAllString(text, rule.replacement)
		applied = append(applied, rule.id)
	}
	return SanitizeResult{
		Text:    strings.TrimSpace(text),
		Applied: applied,
	}
}

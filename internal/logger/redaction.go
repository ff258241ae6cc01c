package logger

import (
	"fmt"
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

type redactionRule struct {
	name string
	re   *regexp.Regexp
}

// defaultRules mask credentials that can reach the log: embedding API keys,
// the gateway shared secret, and generic key/value secrets.
var defaultRules = []redactionRule{
	{"openai-key", regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`)},
	{"bearer", regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]+`)},
	{"gateway-secret", regexp.MustCompile(`(?i)X-MCP-Standards-Secret["\s:=]+[^\s",]+`)},
	{"api-key", regexp.MustCompile(`(?i)api_?key["\s:=]+[^\s",]+`)},
	{"password", regexp.MustCompile(`(?i)(password|pwd)["\s:=]+[^\s",]+`)},
	{"token", regexp.MustCompile(`(?i)token["\s:=]+[A-Za-z0-9._-]{20,}`)},
	{"shared-secret", regexp.MustCompile(`(?i)secret["\s:=]+[^\s",]+`)},
	{"aws-access-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
}

// Redactor masks secrets in log lines.
type Redactor struct {
	rules []redactionRule
}

// NewRedactor returns a Redactor loaded with the default rules.
func NewRedactor() *Redactor {
	rules := make([]redactionRule, len(defaultRules))
	copy(rules, defaultRules)
	return &Redactor{rules: rules}
}

// AddPattern registers an extra regular expression to mask.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid redaction pattern: %w", err)
	}
	r.rules = append(r.rules, redactionRule{name: "custom", re: re})
	return nil
}

// Rules returns the rule names in evaluation order.
func (r *Redactor) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.name
	}
	return names
}

func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllLiteralString(s, redacted)
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return redactingWriter{next: w, r: r}
}

type redactingWriter struct {
	next io.Writer
	r    *Redactor
}

// Write reports len(p) on success since callers count the bytes they
// handed over, not what reached the sink.
func (w redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.next, w.r.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}

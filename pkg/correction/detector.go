// Package correction spots "use X not Y" style corrections and standing
// preferences in free text, and guesses which category they belong to.
package correction

import (
	"regexp"
	"strings"
	"sync/atomic"
	"unicode"
)

// Correction is a detected "prefer X over Y" statement.
type Correction struct {
	Preferred  string `json:"preferred"`
	Deprecated string `json:"deprecated"`
	Match      string `json:"match"`
}

// Statement renders the correction as a memory.
func (c Correction) Statement() string {
	if c.Deprecated == "" {
		return "Use " + c.Preferred
	}
	return "Use " + c.Preferred + " instead of " + c.Deprecated
}

// Preference is a detected standing instruction.
type Preference struct {
	Preference string `json:"preference"`
	Match      string `json:"match"`
}

// Stats counts detections made by a Detector.
type Stats struct {
	Corrections int64    `json:"corrections"`
	Preferences int64    `json:"preferences"`
	Patterns    int      `json:"patterns"`
	Categories  []string `json:"categories"`
}

type correctionPattern struct {
	re *regexp.Regexp
	// swap is set when the deprecated term is captured first.
	swap bool
}

var correctionPatterns = []correctionPattern{
	{re: regexp.MustCompile(`(?i)\bactually,?\s+(?:use|do|need|should|prefer)\s+(.+?)(?:\s+not\s+|\s+instead\s+of\s+|\s+over\s+)(.+?)(?:\s|$|\.|,)`)},
	{re: regexp.MustCompile(`(?i)\buse\s+([\w.-]+)\s+not\s+([\w.-]+)`)},
	{re: regexp.MustCompile(`(?i)\buse\s+([\w.-]+)\s+instead\s+of\s+([\w.-]+)`)},
	{re: regexp.MustCompile(`(?i)\bprefer\s+([\w.-]+)\s+(?:over|to)\s+([\w.-]+)`)},
	{re: regexp.MustCompile(`(?i)\bdon'?t\s+use\s+([\w.-]+),?\s+use\s+([\w.-]+)`), swap: true},
	{re: regexp.MustCompile(`(?i)\balways\s+use\s+([\w.-]+)\s+(?:for|when)\s+(.+?)(?:\s|$|\.|,)`)},
}

var preferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\balways\s+(.+?)\s+(?:before|after|when)\s+(.+?)(?:$|\.)`),
	regexp.MustCompile(`(?i)\b(?:should|must)\s+(?:always\s+)?(.+?)(?:$|\.)`),
	regexp.MustCompile(`(?i)\b(?:prefer|like)\s+to\s+(.+?)(?:$|\.)`),
}

type categoryKeywords struct {
	category string
	keywords []string
}

// Groups are checked in order. javascript and testing are recognised so their
// keywords are not misfiled, then folded into general.
var categoryLexicon = []categoryKeywords{
	{category: "python", keywords: []string{"pip", "uv", "poetry", "python", "pytest", "virtualenv", "conda", "pipenv"}},
	{category: "general", keywords: []string{"npm", "yarn", "pnpm", "node", "jest", "webpack"}},
	{category: "git", keywords: []string{"git", "commit", "commits", "branch", "merge", "rebase", "push"}},
	{category: "general", keywords: []string{"test", "tests", "spec", "assert", "mock", "coverage"}},
	{category: "docker", keywords: []string{"docker", "dockerfile", "container", "containers", "image", "compose"}},
}

// Detector is safe for concurrent use.
type Detector struct {
	corrections atomic.Int64
	preferences atomic.Int64
}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectCorrection returns the first correction found in text.
func (d *Detector) DetectCorrection(text string) (Correction, bool) {
	for _, p := range correctionPatterns {
		m := p.re.FindStringSubmatch(text)
		if len(m) < 3 {
			continue
		}

		preferred := cleanTerm(m[1])
		deprecated := cleanTerm(m[2])
		if p.swap {
			preferred, deprecated = deprecated, preferred
		}
		if preferred == "" {
			continue
		}

		d.corrections.Add(1)
		return Correction{
			Preferred:  preferred,
			Deprecated: deprecated,
			Match:      strings.TrimSpace(m[0]),
		}, true
	}
	return Correction{}, false
}

// DetectPreference returns the first standing preference found in text.
func (d *Detector) DetectPreference(text string) (Preference, bool) {
	for _, re := range preferencePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		pref := cleanTerm(m[0])
		if pref == "" {
			continue
		}

		d.preferences.Add(1)
		return Preference{
			Preference: upperFirst(pref),
			Match:      strings.TrimSpace(m[0]),
		}, true
	}
	return Preference{}, false
}

// DetectCategory maps text to a category name using the keyword lexicon.
// Unmatched text is "general".
func (d *Detector) DetectCategory(text string) string {
	return DetectCategory(text)
}

// DetectCategory maps text to a category name using the keyword lexicon.
func DetectCategory(text string) string {
	words := make(map[string]bool)
	for _, w := range Tokenize(text) {
		words[w] = true
	}

	for _, group := range categoryLexicon {
		for _, kw := range group.keywords {
			if words[kw] {
				return group.category
			}
		}
	}
	return "general"
}

// Keywords returns the lexicon keywords for a category, used by embedders
// that want concept features.
func Keywords() map[string][]string {
	out := make(map[string][]string)
	for _, group := range categoryLexicon {
		out[group.category] = append(out[group.category], group.keywords...)
	}
	return out
}

// Stats reports detection counters.
func (d *Detector) Stats() Stats {
	return Stats{
		Corrections: d.corrections.Load(),
		Preferences: d.preferences.Load(),
		Patterns:    len(correctionPatterns) + len(preferencePatterns),
		Categories:  []string{"python", "git", "docker", "general"},
	}
}

// Tokenize lowercases text and splits it on anything that is not a letter,
// digit or one of "+#.".
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#' && r != '.'
	})

	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func cleanTerm(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `.,!?;:"'`))
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// Criterion is one rule of the match cascade. Priority is its position in the list
// handed to Match.
type Criterion interface {
	Name() string
	Match(c Candidate) bool
}

// ExactMultiField matches candidates containing every one of Fields.
type ExactMultiField struct {
	Fields []string
}

// Name describes the criterion for diagnostics.
func (m ExactMultiField) Name() string { return "exact-multi-field" + fieldList(m.Fields) }

// Match reports whether all fields appear in the candidate's text or descriptive attributes.
func (m ExactMultiField) Match(c Candidate) bool {
	if len(m.Fields) == 0 {
		return false
	}
	return countFields(c.Haystack(), m.Fields) == len(m.Fields)
}

// PartialField matches candidates containing at least Min of Fields.
type PartialField struct {
	Fields []string
	Min    int // zero means 1
}

// Name describes the criterion for diagnostics.
func (m PartialField) Name() string {
	return fmt.Sprintf("partial-field%s>=%d", fieldList(m.Fields), m.min())
}

// Match reports whether at least Min fields appear in the candidate.
func (m PartialField) Match(c Candidate) bool {
	if len(m.Fields) == 0 {
		return false
	}
	return countFields(c.Haystack(), m.Fields) >= m.min()
}

func (m PartialField) min() int {
	if m.Min <= 0 {
		return 1
	}
	return m.Min
}

// categoryAttrs are attributes checked by CategoryOnly besides the text.
var categoryAttrs = []string{"class", "href", "data-category", "alt", "title", "aria-label"}

// CategoryOnly matches candidates mentioning Category in text, class list, link or
// descriptive attributes.
type CategoryOnly struct {
	Category string
}

// Name describes the criterion for diagnostics.
func (m CategoryOnly) Name() string { return fmt.Sprintf("category-only[%s]", m.Category) }

// Match reports whether the category keyword appears anywhere descriptive on the candidate.
func (m CategoryOnly) Match(c Candidate) bool {
	needle := strings.ToLower(NormalizeText(m.Category))
	if needle == "" {
		return false
	}
	if strings.Contains(strings.ToLower(c.Text), needle) {
		return true
	}
	for _, a := range categoryAttrs {
		if strings.Contains(strings.ToLower(c.Attrs[a]), needle) {
			return true
		}
	}
	return false
}

// TextPattern matches candidates whose collapsed text matches Pattern.
type TextPattern struct {
	Pattern *regexp.Regexp
}

// Name describes the criterion for diagnostics.
func (m TextPattern) Name() string {
	if m.Pattern == nil {
		return "text-pattern[]"
	}
	return fmt.Sprintf("text-pattern[%s]", m.Pattern)
}

// Match reports whether the pattern matches the candidate's text.
func (m TextPattern) Match(c Candidate) bool {
	return m.Pattern != nil && m.Pattern.MatchString(c.Text)
}

// AttrContains matches candidates whose attribute Attr contains Value, case-insensitive.
// empty Value only requires the attribute to be present.
type AttrContains struct {
	Attr  string
	Value string
}

// Name describes the criterion for diagnostics.
func (m AttrContains) Name() string { return fmt.Sprintf("attr-contains[%s=%s]", m.Attr, m.Value) }

// Match reports whether the attribute exists and contains the value.
func (m AttrContains) Match(c Candidate) bool {
	v, ok := c.Attrs[m.Attr]
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(v), strings.ToLower(m.Value))
}

// FirstAvailable matches any candidate. It is the last resort of a cascade and the
// most likely source of false positives.
type FirstAvailable struct{}

// Name describes the criterion for diagnostics.
func (FirstAvailable) Name() string { return "first-available" }

// Match always returns true.
func (FirstAvailable) Match(Candidate) bool { return true }

func countFields(haystack string, fields []string) int {
	n := 0
	for _, f := range fields {
		needle := strings.ToLower(NormalizeText(f))
		if needle != "" && strings.Contains(haystack, needle) {
			n++
		}
	}
	return n
}

func fieldList(fields []string) string {
	return "[" + strings.Join(fields, "|") + "]"
}

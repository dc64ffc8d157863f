// Package classify maps intervention free text onto the route and dosage
// form vocabularies.
//
// Matching is heuristic. Multi-route interventions collapse to the first
// matching category, synonyms outside the keyword lists are missed, and an
// abbreviation such as "ia" can fire on an unrelated token. These are known
// limitations of first-match keyword classification.
package classify

import (
	"regexp"
	"strings"

	"github.com/rohankatakam/trialgraph/internal/textnorm"
)

type categoryDef struct {
	label    string
	keywords []string
}

type keyword struct {
	text    string
	pattern *regexp.Regexp
	// abbrev keywords carry periods ("i.v.") and also match as a bare token
	abbrev bool
}

type category struct {
	label    string
	keywords []keyword
}

// table is immutable after init.
type table []category

var (
	routeTable      = compile(routeKeywords)
	dosageFormTable = compile(dosageFormKeywords)
)

func compile(defs []categoryDef) table {
	t := make(table, 0, len(defs))
	for _, def := range defs {
		c := category{label: def.label}
		for _, kw := range def.keywords {
			c.keywords = append(c.keywords, compileKeyword(kw))
		}
		t = append(t, c)
	}
	return t
}

// compileKeyword builds a word-boundary pattern. For abbreviations every
// period is optional and the trailing one may stand in for the closing
// boundary, since \b never holds between "." and the end of text.
// "i.v." therefore matches "i.v.", "i.v" and "iv".
func compileKeyword(kw string) keyword {
	if !strings.Contains(kw, ".") {
		return keyword{
			text:    kw,
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
		}
	}

	var parts []string
	for _, p := range strings.Split(kw, ".") {
		if p != "" {
			parts = append(parts, regexp.QuoteMeta(p))
		}
	}
	expr := `\b` + strings.Join(parts, `\.?`) + `(?:\.|\b)`
	return keyword{
		text:    kw,
		pattern: regexp.MustCompile(expr),
		abbrev:  true,
	}
}

func (k keyword) matches(text string, tokens []string) bool {
	if k.pattern.MatchString(text) {
		return true
	}
	if !k.abbrev {
		return false
	}
	if k.text == text {
		return true
	}
	for _, tok := range tokens {
		if tok == k.text {
			return true
		}
	}
	return false
}

func (t table) classify(text string) (string, bool) {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return "", false
	}
	tokens := strings.Fields(normalized)

	for _, c := range t {
		for _, kw := range c.keywords {
			if kw.matches(normalized, tokens) {
				return c.label, true
			}
		}
	}
	return "", false
}

func (t table) labels() []string {
	out := make([]string, len(t))
	for i, c := range t {
		out[i] = c.label
	}
	return out
}

// ClassifyRoute returns the first route whose keywords match text.
func ClassifyRoute(text string) (Route, bool) {
	label, ok := routeTable.classify(text)
	return Route(label), ok
}

// ClassifyDosageForm returns the first dosage form whose keywords match text.
func ClassifyDosageForm(text string) (DosageForm, bool) {
	label, ok := dosageFormTable.classify(text)
	return DosageForm(label), ok
}

// ExtractRouteAndDosage classifies an intervention from its name and type.
// An empty name classifies as nothing; empty results mean absent.
func ExtractRouteAndDosage(name, interventionType string) (Route, DosageForm) {
	if name == "" {
		return "", ""
	}

	text := name
	if interventionType != "" {
		text += " " + interventionType
	}

	route, _ := ClassifyRoute(text)
	form, _ := ClassifyDosageForm(text)
	return route, form
}

// Routes lists the route vocabulary in tie-break order.
func Routes() []Route {
	labels := routeTable.labels()
	out := make([]Route, len(labels))
	for i, l := range labels {
		out[i] = Route(l)
	}
	return out
}

// DosageForms lists the dosage form vocabulary in tie-break order.
func DosageForms() []DosageForm {
	labels := dosageFormTable.labels()
	out := make([]DosageForm, len(labels))
	for i, l := range labels {
		out[i] = DosageForm(l)
	}
	return out
}

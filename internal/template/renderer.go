// Package template renders configuration documents from placeholder-bearing
// templates. Placeholders are written as {{NAME}} where NAME is an upper-case
// identifier. Rendering is a pure string substitution; unmatched placeholders
// are left in place so that callers can detect them with Unresolved.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRE = regexp.MustCompile(`\{\{[A-Z][A-Z0-9_]*\}\}`)

// Render replaces every occurrence of each placeholder with its bound value.
// Substitution values are inserted verbatim; the template is responsible for
// quoting insertion points whose values may contain spaces. Placeholders with
// no binding are left untouched.
func Render(tmpl string, subs map[string]string) string {
	out := tmpl
	for key, value := range subs {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// Unresolved returns the placeholders that remain in a rendered document, in
// order of first appearance and without duplicates.
func Unresolved(doc string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRE.FindAllString(doc, -1) {
		name := strings.TrimSuffix(strings.TrimPrefix(m, "{{"), "}}")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// ValidateValues rejects substitution values that contain template delimiters.
// A value carrying "{{" or "}}" would make the rendered document ambiguous to
// Unresolved and to any later re-render.
func ValidateValues(subs map[string]string) error {
	for key, value := range subs {
		if strings.Contains(value, "{{") || strings.Contains(value, "}}") {
			return fmt.Errorf("substitution %q contains a template delimiter", key)
		}
	}
	return nil
}

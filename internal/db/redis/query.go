package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/recherche/internal/db"
	"github.com/kailas-cloud/recherche/internal/domain/search/query"
)

// RediSearch caps fuzzy matching at three edits (%%%term%%%).
const maxFuzzyDistance = 3

// buildQuery renders a spec as RediSearch query syntax: one clause per field,
// OR-ed together. Fuzzy words are wrapped in one % per edit, wildcard words in *.
// Prefix length and max expansions are server settings and are not expressed here.
func buildQuery(spec query.Spec) string {
	words := strings.Fields(spec.Term)
	if len(words) == 0 {
		return ""
	}

	patterns := make([]string, len(words))
	for i, w := range words {
		w = escapeQuery(w)
		switch spec.Kind {
		case query.KindWildcard:
			patterns[i] = "*" + w + "*"
		default:
			marks := strings.Repeat("%", min(spec.Fuzziness.Distance, maxFuzzyDistance))
			patterns[i] = marks + w + marks
		}
	}
	body := strings.Join(patterns, " ")

	clauses := make([]string, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		clause := fmt.Sprintf("@%s:(%s)", db.FieldAlias(f.Path), body)
		if f.Weight > 0 && f.Weight != 1 {
			clause = fmt.Sprintf("(%s) => { $weight: %s; }", clause, strconv.FormatFloat(f.Weight, 'f', -1, 64))
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " | ")
}

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
)

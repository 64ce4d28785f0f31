package pipeline

import (
	"strings"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// FindPropertyMatch matches free text (a mail subject+body, a dropped
// filename, a metadata row name) against known properties. A property
// matches when its full lowercased name is contained in the text, or when
// any individual name token longer than 3 characters is. Tokens split on
// spaces, commas, and dashes to support "3A Sushila Kunj" and
// "Belysa, Blacktown"-style names. Returns nil when nothing matches.
func FindPropertyMatch(text string, properties []model.Property) *model.Property {
	lower := strings.ToLower(text)
	for i := range properties {
		name := strings.ToLower(properties[i].Name)
		if strings.Contains(lower, name) {
			return &properties[i]
		}
		for _, word := range strings.FieldsFunc(name, func(r rune) bool {
			return r == ' ' || r == ',' || r == '-'
		}) {
			if len(word) > 3 && strings.Contains(lower, word) {
				return &properties[i]
			}
		}
	}
	return nil
}

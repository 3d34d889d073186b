package hierarchy

import (
	"strings"
	"unicode"
)

const (
	LevelExecutive  = "Executive Level"
	LevelManagement = "Management Level"
	LevelSenior     = "Senior Level"
	LevelStaff      = "Staff Level"
)

var (
	executiveWords = map[string]struct{}{
		"ceo": {}, "cfo": {}, "cto": {}, "coo": {}, "cio": {}, "chief": {},
		"president": {}, "vp": {}, "executive": {}, "vorstand": {}, "geschäftsführer": {},
	}
	managementWords = map[string]struct{}{
		"director": {}, "manager": {}, "head": {}, "supervisor": {}, "chef": {}, "leiter": {}, "leiterin": {},
	}
	seniorWords = map[string]struct{}{
		"senior": {}, "sr": {}, "principal": {}, "lead": {}, "expert": {},
	}
	// compounds such as "Abteilungsleiter" carry the keyword as a suffix
	managementSuffixes = []string{"leiter", "leiterin", "leitung", "manager"}
)

// ClassifyPositionLevel derives a coarse seniority label from a position title.
// The label is display-only.
func ClassifyPositionLevel(title string) string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if hasAny(words, executiveWords) {
		return LevelExecutive
	}
	if hasAny(words, managementWords) {
		return LevelManagement
	}
	for _, w := range words {
		for _, suffix := range managementSuffixes {
			if len(w) > len(suffix) && strings.HasSuffix(w, suffix) {
				return LevelManagement
			}
		}
	}
	if hasAny(words, seniorWords) {
		return LevelSenior
	}
	return LevelStaff
}

func hasAny(words []string, set map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

package context

import (
	"regexp"
	"strings"
)

var listAllPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(list|show|give|tell)\b(\s+me)?\s+(all|every|each)\b(\s+of)?(\s+(the|his|kevin'?s|boss kevin'?s))?\s+(compositions?|works?|pieces?|writings?|stories|poems)\b`),
	regexp.MustCompile(`(?i)\bwhat\s+(compositions|works|pieces|writings)\s+(are\s+there|exist|do\s+you\s+have|has\s+(he|kevin|boss\s+kevin)\s+written)\b`),
	regexp.MustCompile(`(?i)^\s*(all|every)\s+(compositions|works|pieces|writings)\s*[?.!]*\s*$`),
}

// IsListAllRequest reports whether message asks for the whole catalogue.
func IsListAllRequest(message string) bool {
	m := strings.TrimSpace(message)
	if m == "" {
		return false
	}
	for _, re := range listAllPatterns {
		if re.MatchString(m) {
			return true
		}
	}
	return false
}

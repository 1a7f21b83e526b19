package services

import (
	"strings"

	"github.com/jobnest/apiserver/types"
)

var experienceLevels = map[string]int{
	strings.ToLower(types.ExperienceInternship): 0,
	strings.ToLower(types.ExperienceFresher):    0,
	strings.ToLower(types.ExperienceEntryLevel): 0,
	strings.ToLower(types.ExperienceMidLevel):   3,
	strings.ToLower(types.ExperienceSenior):     5,
	strings.ToLower(types.ExperienceExecutive):  8,
}

// ExperienceLevel maps an experience label onto the numeric scale the
// matcher compares. Unknown labels map to 0.
func ExperienceLevel(label string) int {
	return experienceLevels[strings.ToLower(strings.TrimSpace(label))]
}

// ValidExperience reports whether label is one of the known labels.
func ValidExperience(label string) bool {
	_, ok := experienceLevels[strings.ToLower(strings.TrimSpace(label))]
	return ok
}

package auth

// Onboarding wizard steps.
const (
	StepSchool   = "school"
	StepChildren = "children"
)

// NeedsOnboarding reports whether a session belongs to a parent whose profile
// is missing school linkage or linked children. This is the only definition
// of "complete profile" in the codebase.
func NeedsOnboarding(s *Session) bool {
	if s == nil || s.Role != RoleParent {
		return false
	}
	return s.SchoolID == "" || len(s.Children) == 0
}

// NextOnboardingStep returns the first wizard step the parent has not done.
// Complete profiles start back at the school step (signup re-entry).
func NextOnboardingStep(s *Session) string {
	if s == nil || s.SchoolID == "" {
		return StepSchool
	}
	if len(s.Children) == 0 {
		return StepChildren
	}
	return StepSchool
}

// ValidStep reports whether step names a wizard step.
func ValidStep(step string) bool {
	return step == StepSchool || step == StepChildren
}

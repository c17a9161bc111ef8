package wizard

import (
	"errors"
	"fmt"
)

// Step names a form step. The terminal step is StepCreatePassword.
type Step string

const (
	StepUserType            Step = "user-type"
	StepAthleteCategory     Step = "athlete-category"
	StepAthleteAcademic     Step = "athlete-academic-info"
	StepAthleteEligibility  Step = "athlete-eligibility-check"
	StepAthleteSport        Step = "athlete-sport-info"
	StepAthleteContact      Step = "athlete-contact"
	StepBusinessType        Step = "business-type"
	StepBusinessLocation    Step = "business-operating-location"
	StepBusinessIndustry    Step = "business-industry"
	StepBusinessBudget      Step = "business-budget"
	StepBusinessContact     Step = "business-contact"
	StepZipCode             Step = "zip-code"
	StepCreatePassword      Step = "create-password"
)

// ErrStepNotInPath means the requested step does not exist in the path
// implied by the current form state.
var ErrStepNotInPath = errors.New("step not in current path")

// Path returns the ordered step sequence implied by the form's branching
// fields. It is a pure function of the form: the two role branches never
// re-converge until the shared zip and password steps, and sub-branches
// (athlete category, service-business location) appear or vanish as the
// corresponding fields change.
func Path(f *FormState) []Step {
	steps := []Step{StepUserType}
	switch f.UserType {
	case UserTypeAthlete:
		if f.AthleteCategory == "" {
			steps = append(steps, StepAthleteCategory)
		}
		if f.AthleteCategory == CategoryCollege {
			steps = append(steps, StepAthleteAcademic, StepAthleteEligibility)
		}
		steps = append(steps, StepAthleteSport, StepAthleteContact)
	case UserTypeBusiness:
		steps = append(steps, StepBusinessType)
		if f.BusinessType == BusinessService {
			steps = append(steps, StepBusinessLocation)
		}
		steps = append(steps, StepBusinessIndustry, StepBusinessBudget, StepBusinessContact)
	default:
		// No role chosen yet; the path is just the first step.
		return steps
	}
	return append(steps, StepZipCode, StepCreatePassword)
}

// branchOrder returns every step of the form's branch in canonical
// order, including the conditional ones. Answering a step can remove
// that step from the live path (picking an athlete category removes the
// category step), so neighbor lookups fall back to this ordering when
// the step being stood on is no longer in Path's output.
func branchOrder(f *FormState) []Step {
	switch f.UserType {
	case UserTypeAthlete:
		return []Step{
			StepUserType, StepAthleteCategory, StepAthleteAcademic, StepAthleteEligibility,
			StepAthleteSport, StepAthleteContact, StepZipCode, StepCreatePassword,
		}
	case UserTypeBusiness:
		return []Step{
			StepUserType, StepBusinessType, StepBusinessLocation, StepBusinessIndustry,
			StepBusinessBudget, StepBusinessContact, StepZipCode, StepCreatePassword,
		}
	}
	return []Step{StepUserType}
}

func stepIndex(steps []Step, s Step) int {
	for i, v := range steps {
		if v == s {
			return i
		}
	}
	return -1
}

// Next validates the current step and returns the step after it. A
// validation failure blocks the transition and returns current unchanged.
// If current's own answer just removed it from the live path, the
// successor is the first live step ranked after it in the branch order.
func Next(f *FormState, current Step) (Step, error) {
	if err := f.Validate(current); err != nil {
		return current, err
	}
	path := Path(f)
	if i := stepIndex(path, current); i >= 0 {
		if i == len(path)-1 {
			return current, fmt.Errorf("%q is the terminal step", current)
		}
		return path[i+1], nil
	}
	order := branchOrder(f)
	rank := stepIndex(order, current)
	if rank < 0 {
		return current, fmt.Errorf("%w: %q", ErrStepNotInPath, current)
	}
	for _, s := range path {
		if stepIndex(order, s) > rank {
			return s, nil
		}
	}
	return current, fmt.Errorf("%q is the terminal step", current)
}

// Back returns the step before current. Going back never validates; the
// user may abandon a half-filled step. Like Next, it consults the branch
// order when current has dropped out of the live path.
func Back(f *FormState, current Step) (Step, error) {
	path := Path(f)
	if i := stepIndex(path, current); i >= 0 {
		if i == 0 {
			return current, nil
		}
		return path[i-1], nil
	}
	order := branchOrder(f)
	rank := stepIndex(order, current)
	if rank < 0 {
		return current, fmt.Errorf("%w: %q", ErrStepNotInPath, current)
	}
	prev := current
	for _, s := range path {
		if stepIndex(order, s) < rank {
			prev = s
		}
	}
	return prev, nil
}

package model

// Outcome is the observed result of handling one submitted code.
type Outcome int

const (
	// OutcomeNone is reported for blank input, which is ignored.
	OutcomeNone Outcome = iota
	OutcomeMalformed
	OutcomeUnknown
	OutcomeAlreadyUsed
	OutcomeGranted
)

var outcomeNames = map[Outcome]string{
	OutcomeNone:        "none",
	OutcomeMalformed:   "malformed",
	OutcomeUnknown:     "unknown",
	OutcomeAlreadyUsed: "already_used",
	OutcomeGranted:     "granted",
}

// String returns the snake_case name used in logs, metrics and journals.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "invalid"
}

// Err maps a rejecting outcome to its domain error. Granted and None map to nil.
func (o Outcome) Err() error {
	switch o {
	case OutcomeMalformed:
		return ErrMalformedCode
	case OutcomeUnknown:
		return ErrUnknownCode
	case OutcomeAlreadyUsed:
		return ErrAlreadyUsed
	default:
		return nil
	}
}

// Outcomes lists every reportable outcome, in declaration order.
func Outcomes() []Outcome {
	return []Outcome{OutcomeNone, OutcomeMalformed, OutcomeUnknown, OutcomeAlreadyUsed, OutcomeGranted}
}

package vehicle

import (
	"fmt"
	"strings"
)

// FlagState is the explicit answer for an option flag. The form never forces the
// caller to answer, so "not answered" is kept apart from "not fitted".
type FlagState int

const (
	FlagUnspecified FlagState = iota
	FlagAbsent
	FlagPresent
)

// FlagUnspecifiedAs is the numeric value an unanswered option flag takes at the
// transform boundary. Listings only mention fitted options, so silence reads as absent.
const FlagUnspecifiedAs = 0.0

// Float maps the state to the 0/1 encoding the model was trained on.
func (f FlagState) Float() float64 {
	switch f {
	case FlagPresent:
		return 1
	case FlagAbsent:
		return 0
	default:
		return FlagUnspecifiedAs
	}
}

func (f FlagState) String() string {
	switch f {
	case FlagPresent:
		return "present"
	case FlagAbsent:
		return "absent"
	default:
		return "unspecified"
	}
}

// ParseFlag accepts the spellings a form or CLI produces for an option flag.
func ParseFlag(s string) (FlagState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified", "?":
		return FlagUnspecified, nil
	case "1", "true", "yes", "sim", "present":
		return FlagPresent, nil
	case "0", "false", "no", "não", "nao", "absent":
		return FlagAbsent, nil
	default:
		return FlagUnspecified, fmt.Errorf("invalid flag value %q", s)
	}
}

// Value holds one field of a record. The zero Value is unset, which is the
// sentinel the required-field gate looks for.
type Value struct {
	set  bool
	text string
	num  float64
	flag FlagState
}

// Text returns a set categorical value.
func Text(s string) Value { return Value{set: true, text: s} }

// Number returns a set numeric value.
func Number(f float64) Value { return Value{set: true, num: f} }

// FlagValue returns a set option-flag value.
func FlagValue(f FlagState) Value { return Value{set: true, flag: f} }

// IsSet reports whether the caller provided the value.
func (v Value) IsSet() bool { return v.set }

// String returns the categorical text.
func (v Value) String() string { return v.text }

// Float returns the numeric value.
func (v Value) Float() float64 { return v.num }

// FlagState returns the flag answer; unset flags are unspecified.
func (v Value) FlagState() FlagState { return v.flag }

// isSentinel reports whether a value still holds its default for the given role.
func (v Value) isSentinel(role FieldRole) bool {
	if !v.set {
		return true
	}
	if role == Categorical {
		return strings.TrimSpace(v.text) == ""
	}
	return false
}

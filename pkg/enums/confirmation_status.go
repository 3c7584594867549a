package enums

import "fmt"

// ConfirmationStatus is the server-authoritative flag for order settlement.
// Only Confirmed means the order is complete; a zero payment balance without
// it is an inconsistent state, never success.
type ConfirmationStatus string

const (
	ConfirmationNotConfirmed ConfirmationStatus = "NOT_CONFIRMED"
	ConfirmationConfirmed    ConfirmationStatus = "CONFIRMED"
)

var validConfirmationStatuses = []ConfirmationStatus{
	ConfirmationNotConfirmed,
	ConfirmationConfirmed,
}

// String implements fmt.Stringer.
func (s ConfirmationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConfirmationStatus.
func (s ConfirmationStatus) IsValid() bool {
	for _, candidate := range validConfirmationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConfirmationStatus converts raw input into a ConfirmationStatus.
func ParseConfirmationStatus(value string) (ConfirmationStatus, error) {
	for _, candidate := range validConfirmationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid confirmation status %q", value)
}

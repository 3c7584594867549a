package enums

import "fmt"

// TenderStatus tracks one payment instrument record against the order total.
type TenderStatus string

const (
	TenderApplied    TenderStatus = "applied"
	TenderAuthorized TenderStatus = "authorized"
	TenderDeclined   TenderStatus = "declined"
)

var validTenderStatuses = []TenderStatus{
	TenderApplied,
	TenderAuthorized,
	TenderDeclined,
}

// String implements fmt.Stringer.
func (s TenderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TenderStatus.
func (s TenderStatus) IsValid() bool {
	for _, candidate := range validTenderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTenderStatus converts raw input into a TenderStatus.
func ParseTenderStatus(value string) (TenderStatus, error) {
	for _, candidate := range validTenderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tender status %q", value)
}

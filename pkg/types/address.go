package types

import "strings"

// Address is the wire representation of a shipping or billing address.
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city,omitempty"`
	StateCode   string `json:"state_code,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// IsEmpty reports whether no address line was captured. Contact-only records
// (name and phone without a street) still count as empty addresses.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Address1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

// ContactOnly returns a blank address carrying just the person fields,
// used to pre-fill billing when shipping to a store.
func (a Address) ContactOnly() Address {
	return Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
	}
}

// AddressSuggestion is the structured verification payload returned when the
// server could not standardize an address. Callers may offer it to the user.
type AddressSuggestion struct {
	Original  Address `json:"original"`
	Suggested Address `json:"suggested"`
	Message   string  `json:"message,omitempty"`
}

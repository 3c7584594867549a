package types

// CustomerInfo is the minimal customer record carried on a basket.
type CustomerInfo struct {
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	Email        string `json:"email"`
	LoggedIn     bool   `json:"-"`
}

package model

// Address is a shipping or billing address as captured on an order.  The
// order stores its own copy as JSON, so later edits to a user's saved
// addresses never change order history.
type Address struct {
    FullName     string `json:"full_name"`
    AddressLine1 string `json:"address_line1"`
    AddressLine2 string `json:"address_line2,omitempty"`
    City         string `json:"city"`
    State        string `json:"state"`
    PostalCode   string `json:"postal_code"`
    Country      string `json:"country"`
    Phone        string `json:"phone"`
}

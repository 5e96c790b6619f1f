package types

import "strings"

// Address is a resolved delivery address. Vietnamese addresses are organised
// as street line, ward, district and province; PostalCode is often absent.
type Address struct {
	PlaceID    string  `json:"placeId,omitempty"`
	Formatted  string  `json:"formatted"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	Ward       string  `json:"ward,omitempty"`
	District   string  `json:"district,omitempty"`
	Province   string  `json:"province"`
	PostalCode string  `json:"postalCode,omitempty"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// OneLine joins the non-empty parts the way the checkout form displays them.
func (a Address) OneLine() string {
	parts := make([]string, 0, 5)
	for _, part := range []string{a.Line1, a.Ward, a.District, a.Province, a.Country} {
		if p := strings.TrimSpace(part); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

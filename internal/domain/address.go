package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StructuredAddress is the shipping form as submitted at checkout.
type StructuredAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Address is a shipping address. Orders created by older clients carry a
// free-form string; current ones carry a structured object.
type Address struct {
	Raw        string
	Structured *StructuredAddress
}

func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*a = Address{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		// Some rows hold a JSON object serialized into a string column.
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") {
			var sa StructuredAddress
			if err := json.Unmarshal([]byte(trimmed), &sa); err == nil {
				*a = Address{Structured: &sa}
				return nil
			}
		}
		*a = Address{Raw: s}
		return nil
	default:
		var sa StructuredAddress
		if err := json.Unmarshal(data, &sa); err != nil {
			return err
		}
		*a = Address{Structured: &sa}
		return nil
	}
}

func (a Address) MarshalJSON() ([]byte, error) {
	if a.Structured != nil {
		return json.Marshal(a.Structured)
	}
	if a.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(a.Raw)
}

// String renders the address on one line.
func (a Address) String() string {
	if a.Structured == nil {
		return a.Raw
	}
	s := a.Structured
	var parts []string
	for _, p := range []string{s.FullName, s.Address, s.City, s.State, s.PostalCode, s.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

package domain

import (
	"bytes"
	"encoding/json"
)

// Product is the read-only catalog projection served by the backend.
type Product struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       Money    `json:"price"`
	Stock       int      `json:"stock"`
	Category    Category `json:"category,omitempty"`
	Images      []Image  `json:"images,omitempty"`
	Image       Image    `json:"image,omitempty"`
}

// PrimaryImage returns the first usable picture of the product.
func (p Product) PrimaryImage() Image {
	for _, img := range p.Images {
		if !img.IsZero() {
			return img
		}
	}
	return p.Image
}

// Category is a product category name. Older endpoints nest it as an
// object, newer ones send the name.
type Category string

func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Category(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Name != "" {
		*c = Category(obj.Name)
	} else {
		*c = Category(obj.Slug)
	}
	return nil
}

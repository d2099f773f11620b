package domain

// Page is one page of a paginated backend listing.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Results  []T    `json:"results"`
}

func (p Page[T]) HasNext() bool {
	return p.Next != ""
}

func (p Page[T]) HasPrevious() bool {
	return p.Previous != ""
}

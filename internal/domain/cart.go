package domain

// CartLine is a flattened product+quantity record owned by the cart store.
type CartLine struct {
	LineID    ID     `json:"lineId,omitempty"`
	ProductID ID     `json:"productId"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"price"`
	Stock     int    `json:"stock"`
	Image     Image  `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Subtotal is unit price times quantity.
func (l CartLine) Subtotal() Money {
	return l.UnitPrice * Money(l.Quantity)
}

// LineFromProduct builds a one-unit line without a server id.
func LineFromProduct(p Product) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Stock:     p.Stock,
		Image:     p.PrimaryImage(),
		Quantity:  1,
	}
}

// CartTotal sums line subtotals.
func CartTotal(lines []CartLine) Money {
	var total Money
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total.Round2()
}

// WishlistEntry is a saved product owned by the wishlist store.
type WishlistEntry struct {
	EntryID   ID     `json:"entryId,omitempty"`
	ProductID ID     `json:"productId"`
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	Stock     int    `json:"stock"`
	Image     Image  `json:"image,omitempty"`
}

// EntryFromProduct builds an entry without a server id.
func EntryFromProduct(p Product) WishlistEntry {
	return WishlistEntry{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		Image:     p.PrimaryImage(),
	}
}

// Product rebuilds the minimal product projection for the entry.
func (e WishlistEntry) Product() Product {
	return Product{ID: e.ProductID, Name: e.Name, Price: e.Price, Stock: e.Stock, Image: e.Image}
}

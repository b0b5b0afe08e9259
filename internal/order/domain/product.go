package domain

// Product is the catalog's view of a sellable item. Its price is the
// canonical unit price orders are validated against.
type Product struct {
	ID    string
	Name  string
	Price Money
}

package domain

// Product is a catalog entry. ID is assigned at creation and never changes.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

package domain

type Product struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Handle   string    `json:"handle,omitempty"`
	SellerID string    `json:"seller_id,omitempty"`
	Variants []Variant `json:"variants"`
}

type Variant struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	SKU    string  `json:"sku,omitempty"`
	Prices []Price `json:"prices"`
}

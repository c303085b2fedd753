package cart

// LineItem is one product+variant+size combination in the cart, in the
// canonical shape every component outside the normalizer works with.
type LineItem struct {
	ContentID int64 `json:"contentId"`
	CartID    int64 `json:"cartId"`
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId"`
	SizeID    int64 `json:"sizeId"`

	ProductName    string  `json:"productName"`
	Description    *string `json:"description,omitempty"`
	VariantName    string  `json:"variantName"`
	SizeName       string  `json:"sizeName"`
	SizeSystemName string  `json:"sizeSystemName"`
	ImageURL       string  `json:"imageUrl"`

	Quantity       int `json:"quantity"`
	AvailableStock int `json:"availableStock"`

	UnitPrice          float64 `json:"unitPrice"`
	HasDiscount        bool    `json:"hasDiscount"`
	DiscountPercentage float64 `json:"discountPercentage"`
	EffectiveUnitPrice float64 `json:"effectiveUnitPrice"`
	LineTotal          float64 `json:"lineTotal"`

	AddedAt string `json:"addedAt"`
}

// Line returns the key the backend uses to address this item.
func (i LineItem) Line() Line {
	return Line{ProductID: i.ProductID, VariantID: i.VariantID, SizeID: i.SizeID}
}

// Line identifies a cart line by product, variant and size.
type Line struct {
	ProductID int64 `json:"productId"`
	VariantID int64 `json:"variantId"`
	SizeID    int64 `json:"sizeId"`
}

// Cart is the aggregate view of the remote cart. A nil ID means the backend
// has not created a cart for this identity yet.
type Cart struct {
	ID             *int64     `json:"cartId"`
	Items          []LineItem `json:"items"`
	TotalItemCount int        `json:"totalItemCount"`
	TotalOriginal  float64    `json:"totalOriginal"`
	TotalFinal     float64    `json:"totalFinal"`
	TotalDiscount  float64    `json:"totalDiscount"`
	HasAnyDiscount bool       `json:"hasAnyDiscount"`
}

// Empty returns the zero-value cart.
func Empty() Cart {
	return Cart{Items: []LineItem{}}
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the item addressed by line, if present.
func (c Cart) Find(line Line) (LineItem, bool) {
	for _, item := range c.Items {
		if item.Line() == line {
			return item, true
		}
	}
	return LineItem{}, false
}

package cart

import (
	"github.com/shopspring/decimal"
)

// RawCart is the cart object exactly as the shop backend sends it. The
// backend's field names stay in this file; everything else uses Cart.
type RawCart struct {
	ID              *int64              `json:"id"`
	Items           []RawItem           `json:"items"`
	TotalItems      int                 `json:"totalItems"`
	TotalOriginal   decimal.NullDecimal `json:"totalOriginal"`
	TotalFinal      decimal.NullDecimal `json:"totalFinal"`
	TotalDescuento  decimal.NullDecimal `json:"totalDescuento"`
	TieneDescuentos bool                `json:"tieneDescuentos"`
}

// RawItem is one backend cart line. Money fields accept JSON numbers or
// numeric strings since DECIMAL columns are often serialized as strings.
type RawItem struct {
	ContentID      int64   `json:"id_contenido"`
	CartID         int64   `json:"id_carrito"`
	ProductID      int64   `json:"id_producto"`
	VariantID      int64   `json:"id_variante"`
	SizeID         int64   `json:"id_talla"`
	ProductName    string  `json:"nombre_producto"`
	Description    *string `json:"descripcion,omitempty"`
	VariantName    string  `json:"nombre_variante"`
	SizeName       string  `json:"nombre_talla"`
	SizeSystemName string  `json:"sistema_talla"`
	ImageURL       string  `json:"imagen_url"`
	Quantity       int     `json:"cantidad"`
	AvailableStock int     `json:"stock_disponible"`
	AddedAt        string  `json:"fecha_agregado"`

	Price              decimal.Decimal     `json:"precio"`
	HasDiscount        bool                `json:"tiene_descuento"`
	DiscountPercentage decimal.NullDecimal `json:"descuento_porcentaje"`
	TotalPrice         decimal.NullDecimal `json:"precio_total_item"`
	FinalPrice         decimal.NullDecimal `json:"precio_final_item"`
}

var hundred = decimal.NewFromInt(100)

// Normalize maps a backend cart into the canonical Cart. It has no side
// effects and returns identical values for identical input. Aggregates sent
// by the backend are ignored and recomputed from the lines.
func Normalize(raw *RawCart) Cart {
	if raw == nil {
		return Empty()
	}

	out := Cart{Items: make([]LineItem, 0, len(raw.Items))}
	if raw.ID != nil {
		id := *raw.ID
		out.ID = &id
	}

	totalOriginal := decimal.Zero
	totalFinal := decimal.Zero
	for _, rawItem := range raw.Items {
		item, original, final := normalizeItem(rawItem)
		out.Items = append(out.Items, item)
		out.TotalItemCount += item.Quantity
		out.HasAnyDiscount = out.HasAnyDiscount || item.HasDiscount
		totalOriginal = totalOriginal.Add(original)
		totalFinal = totalFinal.Add(final)
	}

	out.TotalOriginal = totalOriginal.InexactFloat64()
	out.TotalFinal = totalFinal.InexactFloat64()
	out.TotalDiscount = totalOriginal.Sub(totalFinal).InexactFloat64()
	return out
}

// normalizeItem returns the canonical item together with its original and
// final line amounts at full precision for aggregation.
func normalizeItem(raw RawItem) (LineItem, decimal.Decimal, decimal.Decimal) {
	quantity := decimal.NewFromInt(int64(raw.Quantity))
	divisor := quantity
	if raw.Quantity <= 0 {
		divisor = decimal.NewFromInt(1)
	}

	pct := decimal.Zero
	if raw.HasDiscount && raw.DiscountPercentage.Valid {
		pct = clampPercentage(raw.DiscountPercentage.Decimal)
	}

	lineTotal := LineTotal(raw.Price, pct, raw.HasDiscount, raw.Quantity, raw.TotalPrice, raw.FinalPrice)
	original := raw.Price.Mul(quantity)

	item := LineItem{
		ContentID:          raw.ContentID,
		CartID:             raw.CartID,
		ProductID:          raw.ProductID,
		VariantID:          raw.VariantID,
		SizeID:             raw.SizeID,
		ProductName:        raw.ProductName,
		Description:        raw.Description,
		VariantName:        raw.VariantName,
		SizeName:           raw.SizeName,
		SizeSystemName:     raw.SizeSystemName,
		ImageURL:           raw.ImageURL,
		Quantity:           raw.Quantity,
		AvailableStock:     raw.AvailableStock,
		UnitPrice:          raw.Price.InexactFloat64(),
		HasDiscount:        raw.HasDiscount,
		DiscountPercentage: pct.InexactFloat64(),
		EffectiveUnitPrice: lineTotal.Div(divisor).InexactFloat64(),
		LineTotal:          lineTotal.InexactFloat64(),
		AddedAt:            raw.AddedAt,
	}
	return item, original, lineTotal
}

// LineTotal picks the line amount. Backend totals win when present: the
// discounted total for discounted lines, the plain total otherwise. Without
// one the amount is rebuilt from the unit price, which is also the only rule
// for locally built lines.
func LineTotal(unit, pct decimal.Decimal, discounted bool, quantity int, total, final decimal.NullDecimal) decimal.Decimal {
	if discounted {
		if final.Valid {
			return final.Decimal
		}
		return UnitTotal(unit, pct, quantity)
	}
	if total.Valid {
		return total.Decimal
	}
	return UnitTotal(unit, decimal.Zero, quantity)
}

// UnitTotal is unit * (1 - pct/100) * quantity.
func UnitTotal(unit, pct decimal.Decimal, quantity int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return unit.Mul(factor).Mul(decimal.NewFromInt(int64(quantity)))
}

func clampPercentage(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

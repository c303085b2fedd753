package export

import (
	"fmt"
	"io"

	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/xuri/excelize/v2"
)

const (
	QuoteSheet       = "Quote"
	QuoteContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var quoteHeaders = []interface{}{
	"Product", "Variant", "Size", "Quantity", "Unit price", "Discount %", "Unit price (final)", "Line total",
}

// WriteQuote renders c as an XLSX workbook with one row per line followed by
// the cart totals.
func WriteQuote(w io.Writer, c cart.Cart) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), QuoteSheet); err != nil {
		return fmt.Errorf("failed to name quote sheet: %w", err)
	}

	if err := f.SetSheetRow(QuoteSheet, "A1", &quoteHeaders); err != nil {
		return fmt.Errorf("failed to write quote header: %w", err)
	}

	row := 2
	for _, item := range c.Items {
		values := []interface{}{
			item.ProductName,
			item.VariantName,
			item.SizeName,
			item.Quantity,
			item.UnitPrice,
			item.DiscountPercentage,
			item.EffectiveUnitPrice,
			item.LineTotal,
		}
		if err := f.SetSheetRow(QuoteSheet, cell("A", row), &values); err != nil {
			return fmt.Errorf("failed to write quote line %d: %w", row-1, err)
		}
		row++
	}

	row++
	totals := [][]interface{}{
		{"Items", c.TotalItemCount},
		{"Subtotal", c.TotalOriginal},
		{"Discount", c.TotalDiscount},
		{"Total", c.TotalFinal},
	}
	for _, total := range totals {
		if err := f.SetSheetRow(QuoteSheet, cell("G", row), &total); err != nil {
			return fmt.Errorf("failed to write quote totals: %w", err)
		}
		row++
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write quote: %w", err)
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

package orders

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	OrdersSheet = "Orders"
	ItemsSheet  = "Items"
)

var (
	orderHeader = []interface{}{"Order Number", "Date", "Status", "Payment Method", "Payment Status",
		"Items", "Subtotal", "Shipping", "Tax", "Discount", "Total", "Ship To", "Tracking"}
	itemHeader = []interface{}{"Order Number", "Product ID", "Name", "Variant", "Packaging", "Quantity", "Unit Price", "Line Total"}
)

// ExportXLSX writes orders as a workbook with an order sheet and a line-item sheet.
func ExportXLSX(orders []Order, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, OrdersSheet, 1, orderHeader); err != nil {
		return err
	}
	if err := writeRow(f, ItemsSheet, 1, itemHeader); err != nil {
		return err
	}
	_ = f.SetRowStyle(OrdersSheet, 1, 1, bold)
	_ = f.SetRowStyle(ItemsSheet, 1, 1, bold)

	itemRow := 2
	for i, o := range orders {
		tracking := ""
		if o.TrackingInfo != nil {
			tracking = o.TrackingInfo.TrackingNumber
		}
		row := []interface{}{
			o.OrderNumber, o.CreatedAt, string(o.Status), o.PaymentMethod, o.PaymentStatus,
			len(o.Items),
			o.Totals.Subtotal.InexactFloat64(),
			o.Totals.Shipping.InexactFloat64(),
			o.Totals.Tax.InexactFloat64(),
			o.Totals.Discount.InexactFloat64(),
			o.Totals.Total.InexactFloat64(),
			o.ShippingAddress.OneLine(),
			tracking,
		}
		if err := writeRow(f, OrdersSheet, i+2, row); err != nil {
			return err
		}

		for _, it := range o.Items {
			line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			if err := writeRow(f, ItemsSheet, itemRow, []interface{}{
				o.OrderNumber, string(it.ProductID), it.Name, it.Variant, it.Packaging,
				it.Quantity, it.Price.InexactFloat64(), line.InexactFloat64(),
			}); err != nil {
				return err
			}
			itemRow++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

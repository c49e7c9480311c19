package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"

	"haiwei-pos/backend/internal/domain"
)

var ErrExportDisabled = errors.New("export storage is not configured")

// Exporter stores a rendered document and returns where it can be fetched.
type Exporter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type NoopExporter struct{}

func (NoopExporter) Put(context.Context, string, []byte, string) (string, error) {
	return "", ErrExportDisabled
}

var csvHeader = []string{
	"product_id", "product_name", "fixed_unit",
	"opening", "restock", "closing", "waste",
	"sales_qty", "ref_price", "estimated_revenue",
	"actual_revenue", "diff", "system_sold",
}

func ReconciliationCSV(report domain.ReconciliationReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range report.Rows {
		record := []string{
			row.ProductID,
			row.ProductName,
			strconv.FormatBool(row.IsFixedUnit),
			row.Opening.String(),
			row.Restock.String(),
			row.Closing.String(),
			row.Waste.String(),
			row.SalesQty.String(),
			row.RefPrice.String(),
			row.EstimatedRevenue.StringFixed(0),
			strconv.FormatInt(row.ActualRevenue, 10),
			strconv.FormatInt(row.Diff, 10),
			row.SystemSoldUnit.String(),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	total := make([]string, len(csvHeader))
	total[0] = "TOTAL"
	total[11] = strconv.FormatInt(report.TotalDiff, 10)
	if err := w.Write(total); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package manufacturing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilityReport is the availability snapshot for one raw-material line
type AvailabilityReport struct {
	LineID            uuid.UUID       `json:"line_id"`
	ItemID            uuid.UUID       `json:"item_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ShortageQuantity  decimal.Decimal `json:"shortage_quantity"`
	IsCritical        bool            `json:"is_critical"`
}

// HasShortage reports whether the required quantity exceeds availability
func (r AvailabilityReport) HasShortage() bool {
	return r.ShortageQuantity.GreaterThan(decimal.Zero)
}

// AvailabilityChecker reads current stock levels and produces one report per
// raw-material line. Snapshots are advisory: stock may move between a check
// and a start, which is why starting re-verifies under the ledger's guard.
type AvailabilityChecker struct {
	ledger StockLedger
}

// NewAvailabilityChecker creates a new AvailabilityChecker
func NewAvailabilityChecker(ledger StockLedger) *AvailabilityChecker {
	return &AvailabilityChecker{ledger: ledger}
}

// Check produces an availability report for every line of the process
func (c *AvailabilityChecker) Check(ctx context.Context, tenantID uuid.UUID, process *ManufacturingProcess) ([]AvailabilityReport, error) {
	reports := make([]AvailabilityReport, 0, len(process.Lines))
	for _, line := range process.Lines {
		available, err := c.ledger.Read(ctx, tenantID, line.ItemID, line.WarehouseID)
		if err != nil {
			return nil, err
		}

		shortage := line.ConsumedQuantity.Sub(available)
		if shortage.IsNegative() {
			shortage = decimal.Zero
		}

		reports = append(reports, AvailabilityReport{
			LineID:            line.ID,
			ItemID:            line.ItemID,
			WarehouseID:       line.WarehouseID,
			RequiredQuantity:  line.ConsumedQuantity,
			AvailableQuantity: available,
			ShortageQuantity:  shortage,
			IsCritical:        line.IsCritical,
		})
	}
	return reports, nil
}

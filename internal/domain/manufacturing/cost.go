package manufacturing

import "github.com/shopspring/decimal"

// CostSummary is the rolled-up cost of one manufacturing process run
type CostSummary struct {
	TotalRawMaterialCost   decimal.Decimal `json:"total_raw_material_cost"`
	LaborCost              decimal.Decimal `json:"labor_cost"`
	OverheadCost           decimal.Decimal `json:"overhead_cost"`
	TotalManufacturingCost decimal.Decimal `json:"total_manufacturing_cost"`
	CostPerUnit            decimal.Decimal `json:"cost_per_unit"`
}

// TotalRawMaterialCost sums effective quantity times unit cost over the lines.
// The effective quantity is the recorded actual when present, else the plan.
func TotalRawMaterialCost(lines []RawMaterialLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.TotalCost())
	}
	return total
}

// AggregateCosts rolls raw-material, labor and overhead costs into the total
// manufacturing cost and the per-unit cost of the produced quantity. A zero
// produced quantity yields a zero cost per unit rather than a division error.
func AggregateCosts(lines []RawMaterialLine, laborCost, overheadCost, producedQuantity decimal.Decimal) CostSummary {
	raw := TotalRawMaterialCost(lines)
	total := raw.Add(laborCost).Add(overheadCost)

	perUnit := decimal.Zero
	if producedQuantity.GreaterThan(decimal.Zero) {
		perUnit = total.Div(producedQuantity).Round(4)
	}

	return CostSummary{
		TotalRawMaterialCost:   raw,
		LaborCost:              laborCost,
		OverheadCost:           overheadCost,
		TotalManufacturingCost: total,
		CostPerUnit:            perUnit,
	}
}

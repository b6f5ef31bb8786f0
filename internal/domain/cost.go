package domain

// CostBucket is one slice of the fleet's spend, grouped by pool or region.
type CostBucket struct {
	Key         string  `json:"key"`
	MonthlyCost float64 `json:"monthly_cost"`
	Resources   int     `json:"resources"`
}

// CostSummary aggregates the fleet's spend for the dashboard.
type CostSummary struct {
	TotalMonthly     float64      `json:"total_monthly"`
	ProjectedMonthly float64      `json:"projected_monthly"`
	Currency         string       `json:"currency"`
	ByPool           []CostBucket `json:"by_pool"`
	ByRegion         []CostBucket `json:"by_region"`
}

// Package profit holds the deterministic profit math and the pass/suppress
// gate. Everything here is a pure function of validated inputs; callers never
// invoke it without a sold-price estimate.
package profit

// Inputs for one decision. A nil BuyPrice is treated as 0.
type Inputs struct {
	BuyPrice   *float64
	SoldMedian float64
	ShipCost   float64
	FeePct     float64
	FeeFixed   float64
	TaxPct     float64
}

type Result struct {
	Net    float64 `json:"net"`
	Profit float64 `json:"profit"`
	Margin float64 `json:"margin"`
}

// Decide computes net proceeds, profit and margin:
//
//	fees   = soldMedian * feePct + feeFixed
//	tax    = buyPrice * taxPct
//	net    = soldMedian - fees - shipCost - tax
//	profit = net - buyPrice
//	margin = profit / soldMedian (0 when soldMedian is 0)
func Decide(in Inputs) Result {
	buy := 0.0
	if in.BuyPrice != nil {
		buy = *in.BuyPrice
	}

	fees := in.SoldMedian*in.FeePct + in.FeeFixed
	tax := buy * in.TaxPct
	net := in.SoldMedian - fees - in.ShipCost - tax
	p := net - buy

	margin := 0.0
	if in.SoldMedian != 0 {
		margin = p / in.SoldMedian
	}

	return Result{Net: net, Profit: p, Margin: margin}
}

// Thresholds gate a result. Both values come from configuration; the decision
// logic bakes in no defaults of its own.
type Thresholds struct {
	MinProfit     float64
	MinSoldWindow int
}

// Evaluate reports whether the result should be suppressed and why. Suppressed
// results are still reported, tagged low-confidence.
func (t Thresholds) Evaluate(res Result, sampleCount int) (bool, string) {
	if res.Profit < t.MinProfit || sampleCount < t.MinSoldWindow {
		return true, "Below threshold"
	}
	return false, ""
}

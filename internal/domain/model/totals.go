package model

import "math"

const (
	TaxRate      = 0.10
	ShippingCost = 50.0
)

// 画面表示用の合計。注文時の正式な金額はサーバーが計算する。
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

func ComputeTotals(c Cart) Totals {
	var subtotal float64
	for _, l := range c {
		if l.Quantity <= 0 || l.Price < 0 {
			continue
		}
		subtotal += l.Price * float64(l.Quantity)
	}

	t := Totals{
		Subtotal: round2(subtotal),
		Tax:      round2(subtotal * TaxRate),
	}
	if len(c) > 0 {
		t.Shipping = ShippingCost
	}
	t.Total = round2(t.Subtotal + t.Tax + t.Shipping)
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Mode selects which price column a document shows.
type Mode string

const (
	ModeSeco  Mode = "seco"
	ModeVenda Mode = "venda"
)

// LineInput represents the per-article inputs of the pricing calculation.
type LineInput struct {
	Code     string  `json:"code"`
	CapID    string  `json:"capId"`
	SubcapID string  `json:"subcapId"`
	Desc     string  `json:"desc"`
	Unit     string  `json:"unit"`
	Qty      float64 `json:"qty"`
	PUSeco   float64 `json:"puSeco"`
	K        float64 `json:"k"`
	KOrigem  string  `json:"kOrigem"`
}

// Line contains the derived values for one budget line.
type Line struct {
	LineInput
	VendaUnit  float64 `json:"vendaUnit"`
	TotalSeco  float64 `json:"totalSeco"`
	TotalVenda float64 `json:"totalVenda"`
}

// CapTotal contains the per-chapter roll-up.
type CapTotal struct {
	Seco  float64 `json:"seco"`
	Venda float64 `json:"venda"`
}

// Totals contains the grand roll-up values.
type Totals struct {
	TotalGeralSeco  float64 `json:"totalGeralSeco"`
	TotalGeralVenda float64 `json:"totalGeralVenda"`
	Margem          float64 `json:"margem"`
	MargemPct       float64 `json:"margemPct"`
}

// Result groups the full pricing output: ordered lines, per-chapter
// subtotals and grand totals.
type Result struct {
	Lines       []Line              `json:"lines"`
	PorCapitulo map[string]CapTotal `json:"porCapitulo"`
	Totals      Totals              `json:"totals"`
}

// ComputeLine derives the sale unit price and line totals from the inputs.
func ComputeLine(in LineInput) Line {
	vendaUnit := in.PUSeco * in.K
	return Line{
		LineInput:  in,
		VendaUnit:  vendaUnit,
		TotalSeco:  in.Qty * in.PUSeco,
		TotalVenda: in.Qty * vendaUnit,
	}
}

// Aggregate computes every line and rolls them up. Lines are ordered by
// chapter order, then sub-chapter order, then article code; unknown order
// keys sort last. The same ordering feeds the on-screen preview and the
// printable document, so it must stay deterministic.
func Aggregate(inputs []LineInput, capOrder, subOrder map[string]int) Result {
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, ComputeLine(in))
	}

	orderOf := func(m map[string]int, key string) int {
		if v, ok := m[key]; ok {
			return v
		}
		return 9999
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if a, b := orderOf(capOrder, lines[i].CapID), orderOf(capOrder, lines[j].CapID); a != b {
			return a < b
		}
		if a, b := orderOf(subOrder, lines[i].SubcapID), orderOf(subOrder, lines[j].SubcapID); a != b {
			return a < b
		}
		return lines[i].Code < lines[j].Code
	})

	type capAcc struct {
		seco  decimal.Decimal
		venda decimal.Decimal
	}
	capAccs := make(map[string]capAcc)
	totalSeco := decimal.Zero
	totalVenda := decimal.Zero
	for _, l := range lines {
		seco := decimal.NewFromFloat(l.TotalSeco)
		venda := decimal.NewFromFloat(l.TotalVenda)
		acc := capAccs[l.CapID]
		acc.seco = acc.seco.Add(seco)
		acc.venda = acc.venda.Add(venda)
		capAccs[l.CapID] = acc
		totalSeco = totalSeco.Add(seco)
		totalVenda = totalVenda.Add(venda)
	}
	porCap := make(map[string]CapTotal, len(capAccs))
	for capID, acc := range capAccs {
		porCap[capID] = CapTotal{
			Seco:  acc.seco.Round(2).InexactFloat64(),
			Venda: acc.venda.Round(2).InexactFloat64(),
		}
	}

	geralSeco := totalSeco.Round(2).InexactFloat64()
	geralVenda := totalVenda.Round(2).InexactFloat64()
	margem := totalVenda.Sub(totalSeco).Round(2).InexactFloat64()
	margemPct := 0.0
	if geralVenda > 0 {
		margemPct = margem / geralVenda * 100
	}

	return Result{
		Lines:       lines,
		PorCapitulo: porCap,
		Totals: Totals{
			TotalGeralSeco:  geralSeco,
			TotalGeralVenda: geralVenda,
			Margem:          margem,
			MargemPct:       margemPct,
		},
	}
}

// UnitPrice returns the unit price a document shows for the given mode.
func (l Line) UnitPrice(mode Mode) float64 {
	if mode == ModeVenda {
		return l.VendaUnit
	}
	return l.PUSeco
}

// Total returns the line total a document shows for the given mode.
func (l Line) Total(mode Mode) float64 {
	if mode == ModeVenda {
		return l.TotalVenda
	}
	return l.TotalSeco
}

// Total returns the chapter subtotal for the given mode.
func (t CapTotal) Total(mode Mode) float64 {
	if mode == ModeVenda {
		return t.Venda
	}
	return t.Seco
}

// Round2 rounds a derived value to two decimal places for presentation.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

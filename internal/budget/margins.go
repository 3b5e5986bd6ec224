package budget

import "github.com/solid-projects/gestao/internal/catalog"

// Margin origin labels, most specific tier first.
const (
	OrigemArtigo   = "ARTIGO"
	OrigemCapitulo = "CAPITULO"
	OrigemArea     = "AREA"
	OrigemGlobal   = "GLOBAL"
)

// ResolveK resolves the effective margin coefficient for an article:
// article override, then its chapter, then its area, then the global
// value. A tier counts as set when it normalizes to a positive number.
// When even the global tier is unset the coefficient falls back to 1.
func (o *Orcamento) ResolveK(cat *catalog.Catalog, code string) (float64, string) {
	if k := o.K.Art[code].Float(); k > 0 {
		return k, OrigemArtigo
	}
	it := o.FindItem(cat, code)
	if it != nil {
		if k := o.K.Cap[it.CapID].Float(); k > 0 {
			return k, OrigemCapitulo
		}
		if k := o.K.Area[it.AreaID].Float(); k > 0 {
			return k, OrigemArea
		}
	}
	if k := o.K.Global.Float(); k > 0 {
		return k, OrigemGlobal
	}
	return 1, OrigemGlobal
}

// SetMargin writes a raw margin value at the given tier. Blank clears the
// override so resolution falls through to the next tier.
func (o *Orcamento) SetMargin(level Level, id string, raw string) {
	switch level {
	case LevelArea:
		o.K.Area[id] = Num(raw)
	case LevelCap:
		o.K.Cap[id] = Num(raw)
	case LevelArt:
		o.K.Art[id] = Num(raw)
	default:
		o.K.Global = Num(raw)
	}
}

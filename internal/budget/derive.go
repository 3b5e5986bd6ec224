package budget

import (
	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/pricing"
)

// ActiveArticle reports whether an article contributes to totals: it and
// every ancestor must be selected and it must apply to the project type.
func (o *Orcamento) ActiveArticle(cat *catalog.Catalog, it catalog.Article) bool {
	return o.Selecao.Art[it.ID] &&
		o.Selecao.Sub[it.SubcapID] &&
		o.Selecao.Cap[it.CapID] &&
		o.Selecao.Area[it.AreaID] &&
		it.AppliesTo(cat, o.Info.TipoObra)
}

// LineInputs derives the pricing rows from the current selection, inputs
// and resolved margins.
func (o *Orcamento) LineInputs(cat *catalog.Catalog) []pricing.LineInput {
	var out []pricing.LineInput
	for _, it := range o.Items(cat) {
		if !o.ActiveArticle(cat, it) {
			continue
		}
		lv := o.Inputs[it.ID]
		k, origem := o.ResolveK(cat, it.ID)
		out = append(out, pricing.LineInput{
			Code:     it.ID,
			CapID:    it.CapID,
			SubcapID: it.SubcapID,
			Desc:     it.Desc,
			Unit:     it.Unit,
			Qty:      lv.Qty.Float(),
			PUSeco:   lv.PU.Float(),
			K:        k,
			KOrigem:  origem,
		})
	}
	return out
}

// Compute aggregates the current budget into priced lines and totals.
func (o *Orcamento) Compute(cat *catalog.Catalog) pricing.Result {
	return pricing.Aggregate(o.LineInputs(cat), cat.CapOrder(), cat.SubOrder())
}

// StructureSub is one selected sub-chapter in the structure outline.
type StructureSub struct {
	ID   string `json:"id"`
	Nome string `json:"nome"`
}

// StructureChapter groups the selected sub-chapters of one chapter.
type StructureChapter struct {
	CapID string         `json:"capId"`
	Nome  string         `json:"nome"`
	Subs  []StructureSub `json:"subs,omitempty"`
}

// StructureArea is one selected area of the structure outline.
type StructureArea struct {
	AreaID    string             `json:"areaId"`
	Titulo    string             `json:"titulo"`
	Capitulos []StructureChapter `json:"capitulos,omitempty"`
}

// SelectedStructure outlines the selected areas, chapters and
// sub-chapters for the current project type. Documents fall back to
// this outline while no article carries quantities.
func (o *Orcamento) SelectedStructure(cat *catalog.Catalog) []StructureArea {
	grouped := cat.GroupedChapters(o.Info.TipoObra)
	var out []StructureArea
	for _, areaID := range catalog.AreaIDs {
		if !o.Selecao.Area[areaID] {
			continue
		}
		sa := StructureArea{AreaID: areaID, Titulo: catalog.AreaTitles[areaID]}
		for _, ch := range grouped[areaID] {
			if !o.Selecao.Cap[ch.ID] {
				continue
			}
			sc := StructureChapter{CapID: ch.ID, Nome: ch.Nome}
			for _, sub := range cat.Subcapitulos {
				if sub.CapID != ch.ID || !o.Selecao.Sub[sub.ID] {
					continue
				}
				if !sub.AppliesTo(cat, o.Info.TipoObra) {
					continue
				}
				sc.Subs = append(sc.Subs, StructureSub{ID: sub.ID, Nome: sub.Nome})
			}
			sa.Capitulos = append(sa.Capitulos, sc)
		}
		out = append(out, sa)
	}
	return out
}

// DocumentChapter is one chapter block of an exported budget document.
type DocumentChapter struct {
	CapID   string         `json:"capId"`
	Nome    string         `json:"nome"`
	Lines   []pricing.Line `json:"lines"`
	Total   float64        `json:"total"`
	KAplica string         `json:"kAplica,omitempty"`
}

// Document is the printable budget: header, chapter blocks in catalog
// order, totals and the conditions block. Mode selects which price the
// document surfaces.
type Document struct {
	Info      Info              `json:"info"`
	Mode      pricing.Mode      `json:"mode"`
	Capitulos []DocumentChapter `json:"capitulos"`
	Estrutura []StructureArea   `json:"estrutura,omitempty"`
	Total     float64           `json:"total"`
	Condicoes string            `json:"condicoes"`
}

// BuildDocument assembles the exportable document for the given mode.
func (o *Orcamento) BuildDocument(cat *catalog.Catalog, mode pricing.Mode) Document {
	res := o.Compute(cat)
	doc := Document{Info: o.Info, Mode: mode, Condicoes: o.Condicoes}
	if len(res.Lines) == 0 {
		doc.Estrutura = o.SelectedStructure(cat)
		return doc
	}

	byCap := map[string][]pricing.Line{}
	var order []string
	for _, ln := range res.Lines {
		if _, seen := byCap[ln.CapID]; !seen {
			order = append(order, ln.CapID)
		}
		byCap[ln.CapID] = append(byCap[ln.CapID], ln)
	}
	for _, capID := range order {
		nome := capID
		if c := cat.Chapter(capID); c != nil {
			nome = c.Nome
		}
		ch := DocumentChapter{CapID: capID, Nome: nome, Lines: byCap[capID]}
		ch.Total = res.PorCapitulo[capID].Total(mode)
		if k := o.K.Cap[capID].Float(); k > 0 {
			ch.KAplica = string(o.K.Cap[capID])
		}
		doc.Capitulos = append(doc.Capitulos, ch)
	}
	if mode == pricing.ModeSeco {
		doc.Total = res.Totals.TotalGeralSeco
	} else {
		doc.Total = res.Totals.TotalGeralVenda
	}
	return doc
}

package budget

import (
	"fmt"

	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/obras"
)

// MaxStep is the last wizard step (the review and totals view).
const MaxStep = 6

// SetStep moves the wizard. Navigation is permissive: any step from 1 to 6
// can be targeted directly. Entering the review step arms a one-shot focus
// request for the pricing block.
func (o *Orcamento) SetStep(step int) error {
	if step < 1 || step > MaxStep {
		return fmt.Errorf("passo invalido: %d", step)
	}
	o.setStepInternal(step)
	return nil
}

func (o *Orcamento) setStepInternal(step int) {
	if step == o.UI.Step {
		return
	}
	o.UI.PrevStep = o.UI.Step
	o.UI.Step = step
	if step == MaxStep {
		o.UI.PendingFocusPricing = true
	}
}

// ConsumePendingFocus reports and clears the one-shot focus request.
func (o *Orcamento) ConsumePendingFocus() bool {
	v := o.UI.PendingFocusPricing
	o.UI.PendingFocusPricing = false
	return v
}

// ConsumePendingScroll reports and clears the one-shot scroll target.
func (o *Orcamento) ConsumePendingScroll() string {
	v := o.UI.PendingScroll
	o.UI.PendingScroll = ""
	return v
}

// RequestTipoObra stages a project-type change. Switching type can orphan
// selections that no longer apply, so with articles selected the change
// waits for a decision on whether to keep or clear the selection. With
// nothing selected it applies immediately.
func (o *Orcamento) RequestTipoObra(next catalog.ProjectType) {
	if next == o.Info.TipoObra {
		return
	}
	if !o.hasSelectedArticles() {
		o.Info.TipoObra = next
		return
	}
	o.UI.TipoObraConfirm = &TipoObraConfirm{Previous: o.Info.TipoObra, Next: next}
}

func (o *Orcamento) hasSelectedArticles() bool {
	for _, on := range o.Selecao.Art {
		if on {
			return true
		}
	}
	return false
}

// ConfirmTipoObra applies the staged project-type change. With keep=false
// every selection map is cleared and the tree collapses; inputs and
// margins are preserved either way.
func (o *Orcamento) ConfirmTipoObra(cat *catalog.Catalog, keep bool) {
	tc := o.UI.TipoObraConfirm
	if tc == nil {
		return
	}
	o.UI.TipoObraConfirm = nil
	o.Info.TipoObra = tc.Next
	if keep {
		return
	}
	o.Selecao.Area = allAreasOff()
	o.Selecao.Cap = map[string]bool{}
	o.Selecao.Sub = map[string]bool{}
	o.Selecao.Art = map[string]bool{}
	o.UI.AreaCollapsed = allAreasCollapsed()
	o.UI.CapCollapsed = map[string]bool{}
	o.UI.SubCollapsed = map[string]bool{}
	o.RebuildFromArticles(cat)
}

// CancelTipoObra discards the staged change, keeping the current type.
func (o *Orcamento) CancelTipoObra() {
	o.UI.TipoObraConfirm = nil
}

// AddCustomLine creates a budget-local article under the given sub-chapter
// with a free-form description. The code is the first free
// "<subID>.XC<n>" slot; the line is selected and its inputs initialized
// with the unit's suggested price.
func (o *Orcamento) AddCustomLine(cat *catalog.Catalog, subID, desc, unit string) (*catalog.Article, error) {
	sc := cat.SubChapter(subID)
	if sc == nil {
		return nil, fmt.Errorf("subcapitulo desconhecido: %q", subID)
	}
	if desc == "" {
		return nil, fmt.Errorf("descricao obrigatoria")
	}
	if !catalog.ValidUnit(unit) {
		unit = "un"
	}
	art := catalog.Article{
		ID:       catalog.NextCustomCode(subID, o.CustomItems),
		SubcapID: subID,
		CapID:    sc.CapID,
		AreaID:   cat.AreaOf(sc.CapID),
		Desc:     desc,
		Unit:     unit,
		Custom:   true,
	}
	art.PUSugerido = catalog.SuggestedPU(&art)
	o.CustomItems = append(o.CustomItems, art)
	o.Inputs[art.ID] = LineVals{Qty: "0", PU: "0"}
	o.Selecao.Art[art.ID] = true
	o.RebuildFromArticles(cat)
	o.UI.PendingScroll = art.ID
	o.UI.CustomFormFor = ""
	return &o.CustomItems[len(o.CustomItems)-1], nil
}

// RemoveArticle deselects an article; custom lines are removed outright
// together with their inputs.
func (o *Orcamento) RemoveArticle(cat *catalog.Catalog, code string) {
	delete(o.Selecao.Art, code)
	for i := range o.CustomItems {
		if o.CustomItems[i].ID == code {
			o.CustomItems = append(o.CustomItems[:i], o.CustomItems[i+1:]...)
			delete(o.Inputs, code)
			delete(o.K.Art, code)
			break
		}
	}
	o.RebuildFromArticles(cat)
}

// SetInput writes the raw quantity and dry unit cost for an article.
func (o *Orcamento) SetInput(code, qty, pu string) {
	o.Inputs[code] = LineVals{Qty: Num(qty), PU: Num(pu)}
}

// ToggleCollapse flips the expand state of a tree node.
func (o *Orcamento) ToggleCollapse(level Level, id string) {
	switch level {
	case LevelArea:
		o.UI.AreaCollapsed[id] = !o.UI.AreaCollapsed[id]
	case LevelCap:
		o.UI.CapCollapsed[id] = !o.UI.CapCollapsed[id]
	case LevelSub:
		o.UI.SubCollapsed[id] = !o.UI.SubCollapsed[id]
	}
}

// presets map a usage profile to the chapters a budget of that profile
// typically carries.
var presets = map[string][]string{
	"habitacao": {"01", "02", "05", "06", "10", "11", "12", "13", "20"},
	"comercio":  {"01", "02", "05", "06", "11", "15", "16", "20", "21"},
}

// ApplyPreset switches on the chapters of a usage profile, together with
// their areas, honoring project-type applicability. Unknown profiles are
// a no-op and report false.
func (o *Orcamento) ApplyPreset(cat *catalog.Catalog, name string) bool {
	caps, ok := presets[name]
	if !ok {
		return false
	}
	for _, id := range caps {
		c := cat.Chapter(id)
		if c == nil || !c.AppliesTo(o.Info.TipoObra) {
			continue
		}
		o.Selecao.Cap[id] = true
		o.Selecao.Area[c.Area] = true
		o.UI.AreaCollapsed[c.Area] = false
	}
	return true
}

// OpenObraModal starts a new work draft, suggesting the next free sequence
// for the current year.
func (o *Orcamento) OpenObraModal(registry []obras.Obra, year int) {
	aa := fmt.Sprintf("%02d", year%100)
	o.UI.ObraModalOpen = true
	o.UI.ObraError = ""
	o.UI.ObraDraft = &ObraDraft{
		Ano: year,
		AA:  aa,
		NNN: obras.NextNumber(aa, registry),
	}
}

// UpdateObraDraft recomputes the draft after an edit. Unless the sequence
// was edited by hand, it tracks the next free number for the chosen year.
func (o *Orcamento) UpdateObraDraft(registry []obras.Obra, yearInput, nnn, nome string, nnnManual bool) {
	d := o.UI.ObraDraft
	if d == nil {
		return
	}
	if ano, aa, ok := obras.NormalizeYear(yearInput); ok {
		d.Ano = ano
		d.AA = aa
	}
	d.Nome = nome
	d.NNNManual = nnnManual
	if nnnManual {
		d.NNN = nnn
	} else {
		d.NNN = obras.NextNumber(d.AA, registry)
	}
}

// CloseObraModal discards the draft.
func (o *Orcamento) CloseObraModal() {
	o.UI.ObraModalOpen = false
	o.UI.ObraDraft = nil
	o.UI.ObraError = ""
}

// AttachObra binds the budget header to a work record.
func (o *Orcamento) AttachObra(ob obras.Obra) {
	o.Info.ObraCodigo = ob.ObraCodigo
	o.Info.ObraNome = ob.ObraNome
	o.Info.Obra = ob.ObraDisplay
}

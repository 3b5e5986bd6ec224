package budget

import (
	"fmt"
	"sort"

	"github.com/solid-projects/gestao/internal/catalog"
)

// Level identifies one tier of the selection hierarchy.
type Level string

const (
	LevelArea Level = "area"
	LevelCap  Level = "cap"
	LevelSub  Level = "sub"
	LevelArt  Level = "art"
)

// stepForLevel gates selection changes to the wizard step that edits that
// tier. Article toggles additionally work from the search flow, which moves
// to step 5 first.
var stepForLevel = map[Level]int{
	LevelArea: 2,
	LevelCap:  3,
	LevelSub:  4,
	LevelArt:  5,
}

// ErrWrongStep reports a selection change attempted outside its step.
var ErrWrongStep = fmt.Errorf("selecao fora do passo ativo")

// SetSelected applies a selection change at the given level. Selecting a
// node forces its ancestors on. Deselecting a node with dependents does not
// apply immediately: the change is parked on UI.PendingCascade and must be
// confirmed or declined. The returned cascade is nil when the change was
// applied directly.
func (o *Orcamento) SetSelected(cat *catalog.Catalog, level Level, id string, selected bool) (*PendingCascade, error) {
	want, ok := stepForLevel[level]
	if !ok {
		return nil, fmt.Errorf("nivel de selecao desconhecido: %q", level)
	}
	if o.UI.Step != want {
		return nil, ErrWrongStep
	}

	switch level {
	case LevelArea:
		if !selected {
			if pc := o.cascadeForArea(cat, id); pc != nil {
				o.UI.PendingCascade = pc
				return pc, nil
			}
		}
		o.Selecao.Area[id] = selected
	case LevelCap:
		if !selected {
			if pc := o.cascadeForCap(cat, id); pc != nil {
				o.UI.PendingCascade = pc
				return pc, nil
			}
			o.Selecao.Cap[id] = false
		} else {
			o.Selecao.Cap[id] = true
			if area := cat.AreaOf(id); area != "" {
				o.Selecao.Area[area] = true
			}
		}
	case LevelSub:
		if !selected {
			if pc := o.cascadeForSub(cat, id); pc != nil {
				o.UI.PendingCascade = pc
				return pc, nil
			}
			o.Selecao.Sub[id] = false
		} else {
			o.Selecao.Sub[id] = true
			if sc := cat.SubChapter(id); sc != nil {
				o.Selecao.Cap[sc.CapID] = true
				if area := cat.AreaOf(sc.CapID); area != "" {
					o.Selecao.Area[area] = true
				}
			}
		}
	case LevelArt:
		o.Selecao.Art[id] = selected
		if selected {
			if it := o.FindItem(cat, id); it != nil {
				o.Selecao.Sub[it.SubcapID] = true
				o.Selecao.Cap[it.CapID] = true
				o.Selecao.Area[it.AreaID] = true
			}
			o.UI.PendingScroll = id
		}
		o.RebuildFromArticles(cat)
	}
	return nil, nil
}

// ConfirmCascade applies the parked deselection and its dependent clears.
func (o *Orcamento) ConfirmCascade(cat *catalog.Catalog) {
	pc := o.UI.PendingCascade
	if pc == nil {
		return
	}
	o.UI.PendingCascade = nil
	switch pc.Level {
	case LevelArea:
		o.Selecao.Area[pc.ID] = false
	case LevelCap:
		o.Selecao.Cap[pc.ID] = false
	case LevelSub:
		o.Selecao.Sub[pc.ID] = false
	}
	for _, c := range pc.Caps {
		o.Selecao.Cap[c] = false
	}
	for _, s := range pc.Subs {
		o.Selecao.Sub[s] = false
	}
	for _, a := range pc.Arts {
		o.Selecao.Art[a] = false
	}
	if len(pc.Arts) > 0 {
		o.RebuildFromArticles(cat)
	}
}

// DeclineCascade discards the parked deselection, leaving state untouched.
func (o *Orcamento) DeclineCascade() {
	o.UI.PendingCascade = nil
}

// cascadeForArea counts every chapter of the area, every sub-chapter under
// those chapters and every selected article beneath them. A nil return
// means the deselection has no dependents and can apply directly.
func (o *Orcamento) cascadeForArea(cat *catalog.Catalog, areaID string) *PendingCascade {
	var caps, subs, arts []string
	inArea := map[string]bool{}
	for _, c := range cat.Capitulos {
		if c.Area == areaID {
			caps = append(caps, c.ID)
			inArea[c.ID] = true
		}
	}
	inSub := map[string]bool{}
	for _, s := range cat.Subcapitulos {
		if inArea[s.CapID] {
			subs = append(subs, s.ID)
			inSub[s.ID] = true
		}
	}
	for _, it := range o.Items(cat) {
		if inSub[it.SubcapID] && o.Selecao.Art[it.ID] {
			arts = append(arts, it.ID)
		}
	}
	return newCascade(LevelArea, areaID, caps, subs, arts)
}

// cascadeForCap counts every sub-chapter of the chapter and every selected
// article beneath them.
func (o *Orcamento) cascadeForCap(cat *catalog.Catalog, capID string) *PendingCascade {
	var subs, arts []string
	inSub := map[string]bool{}
	for _, s := range cat.Subcapitulos {
		if s.CapID == capID {
			subs = append(subs, s.ID)
			inSub[s.ID] = true
		}
	}
	for _, it := range o.Items(cat) {
		if inSub[it.SubcapID] && o.Selecao.Art[it.ID] {
			arts = append(arts, it.ID)
		}
	}
	return newCascade(LevelCap, capID, nil, subs, arts)
}

// cascadeForSub counts the selected articles of the sub-chapter.
func (o *Orcamento) cascadeForSub(cat *catalog.Catalog, subID string) *PendingCascade {
	var arts []string
	for _, it := range o.Items(cat) {
		if it.SubcapID == subID && o.Selecao.Art[it.ID] {
			arts = append(arts, it.ID)
		}
	}
	return newCascade(LevelSub, subID, nil, nil, arts)
}

func newCascade(level Level, id string, caps, subs, arts []string) *PendingCascade {
	count := len(caps) + len(subs) + len(arts)
	if count == 0 {
		return nil
	}
	sort.Strings(caps)
	sort.Strings(subs)
	sort.Strings(arts)
	return &PendingCascade{Level: level, ID: id, Count: count, Caps: caps, Subs: subs, Arts: arts}
}

// RebuildFromArticles re-derives sub-chapter and chapter selection from the
// set of selected articles, which is the ground truth. Areas with selected
// articles are forced on; areas are never turned off here.
func (o *Orcamento) RebuildFromArticles(cat *catalog.Catalog) {
	nextSub := map[string]bool{}
	nextCap := make(map[string]bool, len(cat.Capitulos))
	for _, c := range cat.Capitulos {
		nextCap[c.ID] = false
	}
	for _, it := range o.Items(cat) {
		if !o.Selecao.Art[it.ID] {
			continue
		}
		nextSub[it.SubcapID] = true
		nextCap[it.CapID] = true
		o.Selecao.Area[it.AreaID] = true
	}
	o.Selecao.Sub = nextSub
	o.Selecao.Cap = nextCap
}

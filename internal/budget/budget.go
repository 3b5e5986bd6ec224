// Package budget implements the orçamento working document: hierarchical
// selection over the catalog, margin resolution, per-article inputs and the
// wizard flow that sequences them.
package budget

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/solid-projects/gestao/internal/catalog"
)

// DefaultCondicoes is the initial payment/terms block of a fresh budget.
var DefaultCondicoes = strings.Join([]string{
	"1) Validade do orcamento: 30 dias.",
	"2) Condicoes de pagamento: a acordar com o cliente.",
	"3) Prazo de execucao: a definir em funcao do planeamento.",
	"4) Exclusoes: trabalhos nao descritos no presente orcamento.",
	"5) Trabalhos a mais: sujeitos a aprovacao previa.",
}, "\n")

// DefaultGlobalK is the fallback margin coefficient when no tier is set.
const DefaultGlobalK = 1.3

// defaultAreaK seeds the area-tier margins of a fresh budget.
var defaultAreaK = map[string]Num{
	"A": "1.4", "B": "1.4", "C": "1.3", "D": "1.25", "E": "1.15", "F": "1.4",
}

// Num is a numeric field that keeps the raw user input. It unmarshals from
// JSON numbers or strings and tolerates decimal-comma values when read as a
// float.
type Num string

// UnmarshalJSON accepts a JSON number, string or null.
func (n *Num) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*n = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*n = Num(str)
		return nil
	}
	*n = Num(s)
	return nil
}

// MarshalJSON always emits a string so round-trips are stable.
func (n Num) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// Float normalizes the raw value: decimal commas are coerced to dots and
// non-parseable input yields 0.
func (n Num) Float() float64 {
	return NormalizeNumber(string(n))
}

// NormalizeNumber parses a user-entered number, tolerating decimal commas.
// Non-parseable or non-finite input yields 0.
func NormalizeNumber(value string) float64 {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(value), ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

// Info holds the budget header data.
type Info struct {
	Obra       string              `json:"obra"`
	ObraCodigo string              `json:"obraCodigo"`
	ObraNome   string              `json:"obraNome"`
	TipoObra   catalog.ProjectType `json:"tipoObra"`
	Cliente    string              `json:"cliente"`
	Local      string              `json:"local"`
	Data       string              `json:"data"`
	Versao     string              `json:"versao"`
}

// Selecao holds the four independent selection maps, keyed by area id,
// chapter id, sub-chapter id and article code.
type Selecao struct {
	Area map[string]bool `json:"area"`
	Cap  map[string]bool `json:"cap"`
	Sub  map[string]bool `json:"sub"`
	Art  map[string]bool `json:"art"`
}

// LineVals are the per-article quantity and dry unit cost.
type LineVals struct {
	Qty Num `json:"qty"`
	PU  Num `json:"pu"`
}

// Margens is the four-tier margin override table. A tier value that does
// not normalize to a positive number counts as unset.
type Margens struct {
	Global Num            `json:"global"`
	Area   map[string]Num `json:"area"`
	Cap    map[string]Num `json:"cap"`
	Art    map[string]Num `json:"art"`
}

// Focus points the view at a tree node or article.
type Focus struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ObraDraft is the in-modal draft of a new work record.
type ObraDraft struct {
	Ano       int    `json:"ano"`
	AA        string `json:"aa"`
	NNN       string `json:"nnn"`
	Nome      string `json:"nome"`
	NNNManual bool   `json:"nnnManual"`
}

// TipoObraConfirm is the pending project-type change awaiting a user
// decision.
type TipoObraConfirm struct {
	Previous catalog.ProjectType `json:"previous"`
	Next     catalog.ProjectType `json:"next"`
}

// PendingCascade is a deselection that would affect dependents, awaiting
// explicit confirmation. Declining leaves the selection untouched.
type PendingCascade struct {
	Level Level    `json:"level"`
	ID    string   `json:"id"`
	Count int      `json:"count"`
	Caps  []string `json:"caps,omitempty"`
	Subs  []string `json:"subs,omitempty"`
	Arts  []string `json:"arts,omitempty"`
}

// UI is transient view state: not authoritative business data, but
// persisted so a session restores where it left off.
type UI struct {
	View          string          `json:"view"`
	Step          int             `json:"step"`
	PrevStep      int             `json:"prevStep"`
	AreaCollapsed map[string]bool `json:"areaCollapsed"`
	CapCollapsed  map[string]bool `json:"capCollapsed"`
	SubCollapsed  map[string]bool `json:"subCollapsed"`
	SearchQuery   string          `json:"searchQuery"`
	ShowSeco      bool            `json:"showSeco"`
	ShowVenda     bool            `json:"showVenda"`

	PendingFocusPricing bool   `json:"pendingFocusPricing"`
	PendingScroll       string `json:"pendingScroll,omitempty"`
	Focus               *Focus `json:"focus,omitempty"`

	MarginsOpen   bool            `json:"marginsOpen"`
	ShowMargins   map[string]bool `json:"showMargins"`
	AddingSub     map[string]bool `json:"addingSub"`
	CustomFormFor string          `json:"customFormFor,omitempty"`

	ObraModalOpen bool       `json:"obraModalOpen"`
	ObraDraft     *ObraDraft `json:"obraDraft,omitempty"`
	ObraError     string     `json:"obraError,omitempty"`

	TipoObraConfirm *TipoObraConfirm `json:"tipoObraConfirm,omitempty"`
	PendingCascade  *PendingCascade  `json:"pendingCascade,omitempty"`
}

// Orcamento is the mutable per-session working document.
type Orcamento struct {
	Info        Info                `json:"info"`
	K           Margens             `json:"k"`
	UI          UI                  `json:"ui"`
	Selecao     Selecao             `json:"selecao"`
	Inputs      map[string]LineVals `json:"inputs"`
	CustomItems []catalog.Article   `json:"customItems"`
	Condicoes   string              `json:"condicoes"`
}

// Items returns the effective article view for this budget.
func (o *Orcamento) Items(cat *catalog.Catalog) []catalog.Article {
	return cat.EffectiveItems(o.CustomItems)
}

// FindItem resolves an article code against the effective view.
func (o *Orcamento) FindItem(cat *catalog.Catalog, code string) *catalog.Article {
	for i := range o.CustomItems {
		if o.CustomItems[i].ID == code {
			return &o.CustomItems[i]
		}
	}
	return cat.Article(code)
}

// New creates a fresh budget for the given catalog.
func New(cat *catalog.Catalog) *Orcamento {
	inputs := make(map[string]LineVals, len(cat.Items))
	for _, it := range cat.Items {
		inputs[it.ID] = LineVals{Qty: "0", PU: "0"}
	}
	capSel := make(map[string]bool, len(cat.Capitulos))
	for _, c := range cat.Capitulos {
		capSel[c.ID] = false
	}
	areaK := make(map[string]Num, len(defaultAreaK))
	for k, v := range defaultAreaK {
		areaK[k] = v
	}

	o := &Orcamento{
		Info: Info{
			TipoObra: catalog.ProjectReabilitacao,
			Data:     time.Now().Format("2006-01-02"),
			Versao:   "1.0",
		},
		K: Margens{
			Global: "1.3",
			Area:   areaK,
			Cap:    map[string]Num{},
			Art:    map[string]Num{},
		},
		UI: UI{
			View:          "home",
			Step:          1,
			AreaCollapsed: allAreasCollapsed(),
			CapCollapsed:  map[string]bool{},
			SubCollapsed:  map[string]bool{},
			ShowSeco:      true,
			ShowVenda:     true,
			ShowMargins:   map[string]bool{},
			AddingSub:     map[string]bool{},
		},
		Selecao: Selecao{
			Area: allAreasOff(),
			Cap:  capSel,
			Sub:  map[string]bool{},
			Art:  map[string]bool{},
		},
		Inputs:    inputs,
		Condicoes: DefaultCondicoes,
	}
	return o
}

func allAreasCollapsed() map[string]bool {
	m := make(map[string]bool, len(catalog.AreaIDs))
	for _, a := range catalog.AreaIDs {
		m[a] = true
	}
	return m
}

func allAreasOff() map[string]bool {
	m := make(map[string]bool, len(catalog.AreaIDs))
	for _, a := range catalog.AreaIDs {
		m[a] = false
	}
	return m
}

// Normalize repairs a budget restored from persistence: missing maps and
// defaults are filled in, ancestor selection is re-derived from the article
// ground truth and the collapse state is rebuilt from the selection. isNew
// marks a document that was just created rather than restored.
func (o *Orcamento) Normalize(cat *catalog.Catalog, isNew bool) {
	if o.Info.TipoObra == "" {
		o.Info.TipoObra = catalog.ProjectReabilitacao
	}
	if o.Info.ObraCodigo != "" && o.Info.ObraNome != "" && o.Info.Obra == "" {
		o.Info.Obra = o.Info.ObraCodigo + " - " + o.Info.ObraNome
	}

	if o.Inputs == nil {
		o.Inputs = map[string]LineVals{}
	}
	for _, it := range o.Items(cat) {
		if _, ok := o.Inputs[it.ID]; !ok {
			o.Inputs[it.ID] = LineVals{Qty: "0", PU: "0"}
		}
	}

	if o.K.Global.Float() <= 0 {
		o.K.Global = "1.3"
	}
	if o.K.Area == nil {
		o.K.Area = map[string]Num{}
	}
	for k, v := range defaultAreaK {
		if _, ok := o.K.Area[k]; !ok {
			o.K.Area[k] = v
		}
	}
	if o.K.Cap == nil {
		o.K.Cap = map[string]Num{}
	}
	if o.K.Art == nil {
		o.K.Art = map[string]Num{}
	}

	if o.Selecao.Area == nil {
		o.Selecao.Area = allAreasOff()
	}
	if o.Selecao.Sub == nil {
		o.Selecao.Sub = map[string]bool{}
	}
	if o.Selecao.Art == nil {
		o.Selecao.Art = map[string]bool{}
	}
	nextCap := make(map[string]bool, len(cat.Capitulos))
	for _, c := range cat.Capitulos {
		if !isNew {
			nextCap[c.ID] = o.Selecao.Cap[c.ID]
		} else {
			nextCap[c.ID] = false
		}
	}
	o.Selecao.Cap = nextCap
	o.RebuildFromArticles(cat)

	o.UI.View = "home"
	if o.UI.Step == 0 {
		o.UI.Step = 1
	}
	if o.UI.ShowMargins == nil {
		o.UI.ShowMargins = map[string]bool{}
	}
	if o.UI.AddingSub == nil {
		o.UI.AddingSub = map[string]bool{}
	}
	if o.CustomItems == nil {
		o.CustomItems = []catalog.Article{}
	}

	// Collapse state follows the restored selection: areas and chapters with
	// selected descendants start expanded.
	areaCollapsed := allAreasCollapsed()
	capCollapsed := map[string]bool{}
	subCollapsed := map[string]bool{}
	if !isNew {
		for _, c := range cat.Capitulos {
			if o.Selecao.Cap[c.ID] {
				areaCollapsed[c.Area] = false
			}
			hasSub := false
			for _, s := range cat.Subcapitulos {
				if s.CapID == c.ID && o.Selecao.Sub[s.ID] {
					hasSub = true
					break
				}
			}
			capCollapsed[c.ID] = !hasSub
		}
		for _, s := range cat.Subcapitulos {
			hasArt := false
			for _, it := range o.Items(cat) {
				if it.SubcapID == s.ID && o.Selecao.Art[it.ID] {
					hasArt = true
					break
				}
			}
			subCollapsed[s.ID] = !hasArt
		}
	}
	o.UI.AreaCollapsed = areaCollapsed
	o.UI.CapCollapsed = capCollapsed
	o.UI.SubCollapsed = subCollapsed
}

package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CurrentVersion marks the bundled catalog document schema. A cached copy
// with a different version is considered stale and replaced on startup.
const CurrentVersion = 3

// ProjectType restricts catalog nodes via applicability tags.
type ProjectType string

const (
	ProjectReabilitacao ProjectType = "reabilitacao"
	ProjectObraNova     ProjectType = "obra_nova"
)

// AreaIDs is the fixed set of top-level areas, in display order.
var AreaIDs = []string{"A", "B", "C", "D", "E", "F"}

// AreaTitles maps each area to its display title.
var AreaTitles = map[string]string{
	"A": "A - Licenciamentos",
	"B": "B - Projectos",
	"C": "C - Arquitectura",
	"D": "D - Especialidades",
	"E": "E - Fornecimentos",
	"F": "F - Coordenacao",
}

// Kind tags the node variants of the catalog hierarchy.
type Kind int

const (
	KindArea Kind = iota + 1
	KindChapter
	KindSubChapter
	KindArticle
)

func (k Kind) String() string {
	switch k {
	case KindArea:
		return "area"
	case KindChapter:
		return "capitulo"
	case KindSubChapter:
		return "subcapitulo"
	case KindArticle:
		return "artigo"
	default:
		return "desconhecido"
	}
}

// Chapter belongs to one area.
type Chapter struct {
	ID           string   `json:"id"`
	Area         string   `json:"area"`
	Nome         string   `json:"nome"`
	Ordem        int      `json:"ordem"`
	AplicaA      []string `json:"aplicaA,omitempty"`
	AtivoDefault bool     `json:"ativo_default"`
}

func (Chapter) Kind() Kind { return KindChapter }

// SubChapter belongs to one chapter.
type SubChapter struct {
	ID           string   `json:"id"`
	CapID        string   `json:"capId"`
	Nome         string   `json:"nome"`
	Ordem        int      `json:"ordem"`
	AplicaA      []string `json:"aplicaA,omitempty"`
	AtivoDefault bool     `json:"ativo_default"`
}

func (SubChapter) Kind() Kind { return KindSubChapter }

// Article is the priced leaf of the catalog. Code is dot-hierarchical:
// "<subcapId>.<seq>". Custom marks entries added by the user rather than
// shipped with the bundled document.
type Article struct {
	ID           string   `json:"id"`
	SubcapID     string   `json:"subcapId"`
	CapID        string   `json:"capId"`
	AreaID       string   `json:"areaId"`
	Desc         string   `json:"desc"`
	Unit         string   `json:"unit"`
	PUSugerido   float64  `json:"pu_sugerido,omitempty"`
	AplicaA      []string `json:"aplicaA,omitempty"`
	AtivoDefault bool     `json:"ativo_default"`
	Custom       bool     `json:"custom,omitempty"`
}

func (Article) Kind() Kind { return KindArticle }

// Catalog is the reference document: immutable except for explicit
// add-article actions.
type Catalog struct {
	Version      int          `json:"version"`
	Capitulos    []Chapter    `json:"capitulos"`
	Subcapitulos []SubChapter `json:"subcapitulos"`
	Items        []Article    `json:"items"`
}

// Stale reports whether a cached copy must be replaced by the bundled
// document.
func (c *Catalog) Stale() bool {
	return c == nil || c.Version != CurrentVersion || len(c.Items) == 0
}

// Chapter returns the chapter with the given id, or nil.
func (c *Catalog) Chapter(id string) *Chapter {
	for i := range c.Capitulos {
		if c.Capitulos[i].ID == id {
			return &c.Capitulos[i]
		}
	}
	return nil
}

// SubChapter returns the sub-chapter with the given id, or nil.
func (c *Catalog) SubChapter(id string) *SubChapter {
	for i := range c.Subcapitulos {
		if c.Subcapitulos[i].ID == id {
			return &c.Subcapitulos[i]
		}
	}
	return nil
}

// Article returns the catalog-native article with the given code, or nil.
// Custom budget entries are resolved by the caller via EffectiveItems.
func (c *Catalog) Article(code string) *Article {
	for i := range c.Items {
		if c.Items[i].ID == code {
			return &c.Items[i]
		}
	}
	return nil
}

// EffectiveItems returns the effective article view: catalog-native entries
// followed by the budget's custom ones.
func (c *Catalog) EffectiveItems(custom []Article) []Article {
	if len(custom) == 0 {
		return c.Items
	}
	out := make([]Article, 0, len(c.Items)+len(custom))
	out = append(out, c.Items...)
	out = append(out, custom...)
	return out
}

// AreaOf resolves the area id for a chapter id.
func (c *Catalog) AreaOf(capID string) string {
	if cap := c.Chapter(capID); cap != nil {
		return cap.Area
	}
	return ""
}

// AppliesTo reports whether the chapter is available for the project type.
// A chapter with no explicit tag applies to every type.
func (ch *Chapter) AppliesTo(tipo ProjectType) bool {
	return tagApplies(ch.AplicaA, tipo)
}

// AppliesTo resolves the sub-chapter applicability: an explicit tag set
// overrides inheritance, otherwise the parent chapter decides.
func (s *SubChapter) AppliesTo(c *Catalog, tipo ProjectType) bool {
	if len(s.AplicaA) > 0 {
		return tagApplies(s.AplicaA, tipo)
	}
	if cap := c.Chapter(s.CapID); cap != nil {
		return cap.AppliesTo(tipo)
	}
	return true
}

// AppliesTo resolves the article applicability through the sub-chapter and
// chapter chain.
func (a *Article) AppliesTo(c *Catalog, tipo ProjectType) bool {
	if len(a.AplicaA) > 0 {
		return tagApplies(a.AplicaA, tipo)
	}
	if sub := c.SubChapter(a.SubcapID); sub != nil {
		return sub.AppliesTo(c, tipo)
	}
	if cap := c.Chapter(a.CapID); cap != nil {
		return cap.AppliesTo(tipo)
	}
	return true
}

func tagApplies(tags []string, tipo ProjectType) bool {
	if tipo == "" || len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if t == string(tipo) {
			return true
		}
	}
	return false
}

// AreaRank orders areas A..F; unknown areas sort last.
func AreaRank(area string) int {
	switch area {
	case "A":
		return 1
	case "B":
		return 2
	case "C":
		return 3
	case "D":
		return 4
	case "E":
		return 5
	case "F":
		return 6
	default:
		return 9
	}
}

// GroupedChapters groups the chapters applicable to tipo by area, each group
// sorted by display order.
func (c *Catalog) GroupedChapters(tipo ProjectType) map[string][]Chapter {
	groups := make(map[string][]Chapter, len(AreaIDs))
	for _, a := range AreaIDs {
		groups[a] = nil
	}
	caps := make([]Chapter, 0, len(c.Capitulos))
	for _, cap := range c.Capitulos {
		if cap.AppliesTo(tipo) {
			caps = append(caps, cap)
		}
	}
	sort.SliceStable(caps, func(i, j int) bool {
		if d := AreaRank(caps[i].Area) - AreaRank(caps[j].Area); d != 0 {
			return d < 0
		}
		return caps[i].Ordem < caps[j].Ordem
	})
	for _, cap := range caps {
		groups[cap.Area] = append(groups[cap.Area], cap)
	}
	return groups
}

// CapOrder maps chapter id to display order.
func (c *Catalog) CapOrder() map[string]int {
	m := make(map[string]int, len(c.Capitulos))
	for _, cap := range c.Capitulos {
		m[cap.ID] = cap.Ordem
	}
	return m
}

// SubOrder maps sub-chapter id to display order.
func (c *Catalog) SubOrder() map[string]int {
	m := make(map[string]int, len(c.Subcapitulos))
	for _, s := range c.Subcapitulos {
		m[s.ID] = s.Ordem
	}
	return m
}

// suggestedByUnit is the fallback table used when an article carries no
// explicit suggested unit price.
var suggestedByUnit = map[string]float64{
	"m2": 15,
	"m":  10,
	"un": 25,
	"vg": 100,
	"m3": 45,
	"kg": 2,
	"h":  15,
	"l":  3,
}

// SuggestedPU returns the suggested unit price for an article: the explicit
// value when present, else a per-unit fallback, else 0.
func SuggestedPU(a *Article) float64 {
	if a == nil {
		return 0
	}
	if a.PUSugerido > 0 {
		return a.PUSugerido
	}
	return suggestedByUnit[a.Unit]
}

// UnitOptions lists the units accepted for new articles and custom lines.
var UnitOptions = []string{"m2", "m", "un", "vg", "m3", "kg", "h", "l"}

// ValidUnit reports whether unit is one of UnitOptions.
func ValidUnit(unit string) bool {
	for _, u := range UnitOptions {
		if u == unit {
			return true
		}
	}
	return false
}

// NextArticleCode computes the code for a new catalog article under subID:
// max numeric suffix among siblings + 1.
func NextArticleCode(subID string, items []Article) string {
	maxSeq := 0
	for _, a := range items {
		if a.SubcapID != subID {
			continue
		}
		parts := strings.Split(a.ID, ".")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s.%d", subID, maxSeq+1)
}

// NextCustomCode computes the first free "<subID>.XC<n>" code for a custom
// budget line.
func NextCustomCode(subID string, items []Article) string {
	taken := make(map[string]bool)
	prefix := subID + ".XC"
	for _, a := range items {
		if strings.HasPrefix(a.ID, prefix) {
			taken[a.ID] = true
		}
	}
	for n := 1; ; n++ {
		code := fmt.Sprintf("%s%d", prefix, n)
		if !taken[code] {
			return code
		}
	}
}

// ErrDuplicateArticle is returned when a computed article code already
// exists in the effective catalog view.
var ErrDuplicateArticle = fmt.Errorf("artigo ja existe")

// AddArticle appends a user-created article to the catalog under subID and
// returns it. The code is the next free sequence for that sub-chapter.
func (c *Catalog) AddArticle(subID, desc, unit string) (Article, error) {
	sub := c.SubChapter(subID)
	if sub == nil {
		return Article{}, fmt.Errorf("subcapitulo %q nao existe", subID)
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return Article{}, fmt.Errorf("descricao e obrigatoria")
	}
	if !ValidUnit(unit) {
		return Article{}, fmt.Errorf("unidade %q invalida", unit)
	}

	code := NextArticleCode(subID, c.Items)
	if c.Article(code) != nil {
		return Article{}, ErrDuplicateArticle
	}

	art := Article{
		ID:           code,
		SubcapID:     subID,
		CapID:        sub.CapID,
		AreaID:       c.AreaOf(sub.CapID),
		Desc:         desc,
		Unit:         unit,
		AtivoDefault: true,
	}
	c.Items = append(c.Items, art)
	return art, nil
}

package budget

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/solid-projects/gestao/internal/catalog"
)

// MaxSearchResults caps the article search result set.
const MaxSearchResults = 50

var foldT = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips diacritics so "Alvenaria" matches "alvenária".
func Fold(s string) string {
	out, _, err := transform.String(foldT, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SearchResult pairs a matching article with its chapter context.
type SearchResult struct {
	Item    catalog.Article `json:"item"`
	CapNome string          `json:"capNome"`
	SubNome string          `json:"subNome"`
}

// Search matches the query against article code, description, chapter name
// and sub-chapter name, diacritic-insensitively, over articles applicable
// to the current project type. Results keep catalog order and are capped.
func (o *Orcamento) Search(cat *catalog.Catalog, query string) []SearchResult {
	q := Fold(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []SearchResult
	for _, it := range o.Items(cat) {
		if !it.AppliesTo(cat, o.Info.TipoObra) {
			continue
		}
		capNome, subNome := "", ""
		if c := cat.Chapter(it.CapID); c != nil {
			capNome = c.Nome
		}
		if s := cat.SubChapter(it.SubcapID); s != nil {
			subNome = s.Nome
		}
		hay := Fold(it.ID + " " + it.Desc + " " + capNome + " " + subNome)
		if !strings.Contains(hay, q) {
			continue
		}
		out = append(out, SearchResult{Item: it, CapNome: capNome, SubNome: subNome})
		if len(out) >= MaxSearchResults {
			break
		}
	}
	return out
}

// AddBySearch selects an article found through search: the article and its
// ancestors are switched on, the wizard jumps to the article step and the
// tree is expanded down to the article.
func (o *Orcamento) AddBySearch(cat *catalog.Catalog, code string) bool {
	it := o.FindItem(cat, code)
	if it == nil {
		return false
	}
	o.Selecao.Art[code] = true
	o.Selecao.Sub[it.SubcapID] = true
	o.Selecao.Cap[it.CapID] = true
	o.Selecao.Area[it.AreaID] = true
	o.RebuildFromArticles(cat)

	o.setStepInternal(5)
	o.UI.AreaCollapsed[it.AreaID] = false
	o.UI.CapCollapsed[it.CapID] = false
	o.UI.SubCollapsed[it.SubcapID] = false
	o.UI.PendingScroll = code
	o.UI.SearchQuery = ""
	return true
}

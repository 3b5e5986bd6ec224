package budget

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/pricing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Version: catalog.CurrentVersion,
		Capitulos: []catalog.Chapter{
			{ID: "01", Area: "A", Nome: "Licenciamento municipal", Ordem: 1},
			{ID: "12", Area: "C", Nome: "Alvenarias", Ordem: 2},
			{ID: "17", Area: "C", Nome: "Demolicoes", Ordem: 3, AplicaA: []string{"reabilitacao"}},
			{ID: "20", Area: "E", Nome: "Fornecimento de equipamentos", Ordem: 4},
		},
		Subcapitulos: []catalog.SubChapter{
			{ID: "01.1", CapID: "01", Nome: "Taxas", Ordem: 1},
			{ID: "12.1", CapID: "12", Nome: "Paredes exteriores", Ordem: 1},
			{ID: "12.2", CapID: "12", Nome: "Paredes interiores", Ordem: 2},
			{ID: "17.1", CapID: "17", Nome: "Demolicao parcial", Ordem: 1},
			{ID: "20.1", CapID: "20", Nome: "Equipamento sanitario", Ordem: 1},
		},
		Items: []catalog.Article{
			{ID: "01.1.001", SubcapID: "01.1", CapID: "01", AreaID: "A", Desc: "Taxa de licenciamento", Unit: "vg"},
			{ID: "12.1.001", SubcapID: "12.1", CapID: "12", AreaID: "C", Desc: "Parede dupla de alvenaria", Unit: "m2"},
			{ID: "12.1.002", SubcapID: "12.1", CapID: "12", AreaID: "C", Desc: "Isolamento termico", Unit: "m2"},
			{ID: "12.2.001", SubcapID: "12.2", CapID: "12", AreaID: "C", Desc: "Parede simples", Unit: "m2"},
			{ID: "17.1.001", SubcapID: "17.1", CapID: "17", AreaID: "C", Desc: "Demolicao de alvenaria existente", Unit: "m3"},
			{ID: "20.1.001", SubcapID: "20.1", CapID: "20", AreaID: "E", Desc: "Loica sanitaria", Unit: "un"},
		},
	}
}

func newTestOrcamento(t *testing.T) (*catalog.Catalog, *Orcamento) {
	t.Helper()
	cat := testCatalog()
	o := New(cat)
	o.Normalize(cat, true)
	return cat, o
}

func selectArticle(t *testing.T, cat *catalog.Catalog, o *Orcamento, code string) {
	t.Helper()
	o.UI.Step = 5
	if _, err := o.SetSelected(cat, LevelArt, code, true); err != nil {
		t.Fatalf("select %s: %v", code, err)
	}
}

func TestNormalizeNumber_DecimalComma(t *testing.T) {
	nearlyEqual(t, "comma", NormalizeNumber("1,4"), 1.4)
	nearlyEqual(t, "dot", NormalizeNumber("1.25"), 1.25)
	nearlyEqual(t, "spaces", NormalizeNumber(" 2,5 "), 2.5)
	nearlyEqual(t, "garbage", NormalizeNumber("abc"), 0)
	nearlyEqual(t, "empty", NormalizeNumber(""), 0)
}

func TestNum_UnmarshalNumberOrString(t *testing.T) {
	var lv LineVals
	if err := json.Unmarshal([]byte(`{"qty": 0, "pu": "2,5"}`), &lv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	nearlyEqual(t, "qty", lv.Qty.Float(), 0)
	nearlyEqual(t, "pu", lv.PU.Float(), 2.5)
}

func TestResolveK_ChapterBeatsAreaAndGlobal(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.K.Art["12.1.001"] = "0"
	o.K.Cap["12"] = "1.5"
	o.K.Area["C"] = "0"
	o.K.Global = "1.3"

	k, origem := o.ResolveK(cat, "12.1.001")
	nearlyEqual(t, "k", k, 1.5)
	if origem != OrigemCapitulo {
		t.Fatalf("origem = %q, want %q", origem, OrigemCapitulo)
	}
}

func TestResolveK_ArticleWins(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.K.Art["12.1.001"] = "1,6"
	o.K.Cap["12"] = "1.5"

	k, origem := o.ResolveK(cat, "12.1.001")
	nearlyEqual(t, "k", k, 1.6)
	if origem != OrigemArtigo {
		t.Fatalf("origem = %q, want %q", origem, OrigemArtigo)
	}
}

func TestResolveK_AllUnsetFallsToGlobalDefault(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.K.Area = map[string]Num{}
	o.K.Cap = map[string]Num{}
	o.K.Art = map[string]Num{}

	k, origem := o.ResolveK(cat, "12.1.001")
	nearlyEqual(t, "k", k, 1.3)
	if origem != OrigemGlobal {
		t.Fatalf("origem = %q, want %q", origem, OrigemGlobal)
	}
}

func TestSetSelected_ArticleForcesAncestors(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")

	if !o.Selecao.Art["12.1.001"] || !o.Selecao.Sub["12.1"] || !o.Selecao.Cap["12"] || !o.Selecao.Area["C"] {
		t.Fatalf("ancestors not forced: %+v", o.Selecao)
	}
	if !o.ActiveArticle(cat, *cat.Article("12.1.001")) {
		t.Fatal("article not active after selection")
	}
}

func TestSetSelected_RejectsWrongStep(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.UI.Step = 2

	if _, err := o.SetSelected(cat, LevelArt, "12.1.001", true); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("err = %v, want ErrWrongStep", err)
	}
}

func TestSetSelected_CapDeselectParksCascade(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")
	selectArticle(t, cat, o, "12.2.001")

	o.UI.Step = 3
	pc, err := o.SetSelected(cat, LevelCap, "12", false)
	if err != nil {
		t.Fatalf("deselect: %v", err)
	}
	if pc == nil {
		t.Fatal("expected a pending cascade")
	}
	// Two sub-chapters of the catalog plus the two selected articles.
	if pc.Count != 4 {
		t.Fatalf("count = %d, want 4", pc.Count)
	}
	if !o.Selecao.Cap["12"] {
		t.Fatal("chapter flipped before confirmation")
	}

	o.ConfirmCascade(cat)
	if o.Selecao.Cap["12"] || o.Selecao.Sub["12.1"] || o.Selecao.Art["12.1.001"] {
		t.Fatalf("cascade not applied: %+v", o.Selecao)
	}
	if o.UI.PendingCascade != nil {
		t.Fatal("pending cascade not cleared")
	}
}

func TestSetSelected_DeclineLeavesStateUntouched(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")

	o.UI.Step = 4
	pc, err := o.SetSelected(cat, LevelSub, "12.1", false)
	if err != nil || pc == nil {
		t.Fatalf("expected cascade, got (%+v, %v)", pc, err)
	}
	o.DeclineCascade()

	if !o.Selecao.Sub["12.1"] || !o.Selecao.Art["12.1.001"] {
		t.Fatalf("decline changed selection: %+v", o.Selecao)
	}
}

func TestSetSelected_SubWithoutDependentsAppliesDirectly(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.UI.Step = 4
	if _, err := o.SetSelected(cat, LevelSub, "12.1", true); err != nil {
		t.Fatalf("select: %v", err)
	}
	pc, err := o.SetSelected(cat, LevelSub, "12.1", false)
	if err != nil {
		t.Fatalf("deselect: %v", err)
	}
	if pc != nil {
		t.Fatalf("unexpected cascade: %+v", pc)
	}
	if o.Selecao.Sub["12.1"] {
		t.Fatal("sub still selected")
	}
}

func TestRebuildFromArticles_DerivesAncestors(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.Selecao.Art["12.1.001"] = true
	o.Selecao.Sub["20.1"] = true
	o.Selecao.Cap["20"] = true

	o.RebuildFromArticles(cat)

	if !o.Selecao.Sub["12.1"] || !o.Selecao.Cap["12"] || !o.Selecao.Area["C"] {
		t.Fatalf("ancestors not derived: %+v", o.Selecao)
	}
	if o.Selecao.Sub["20.1"] || o.Selecao.Cap["20"] {
		t.Fatal("ancestors without selected articles survived the rebuild")
	}
}

func TestCompute_EndToEnd(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")
	o.SetInput("12.1.001", "10", "5")
	o.K.Area["C"] = "1.4"

	res := o.Compute(cat)

	if len(res.Lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(res.Lines))
	}
	ln := res.Lines[0]
	nearlyEqual(t, "totalSeco", ln.TotalSeco, 50)
	nearlyEqual(t, "vendaUnit", ln.VendaUnit, 7)
	nearlyEqual(t, "totalVenda", ln.TotalVenda, 70)
	if ln.KOrigem != OrigemArea {
		t.Fatalf("kOrigem = %q, want %q", ln.KOrigem, OrigemArea)
	}
}

func TestCompute_IgnoresInapplicableArticles(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "17.1.001")
	o.SetInput("17.1.001", "2", "100")

	o.Info.TipoObra = catalog.ProjectObraNova
	res := o.Compute(cat)
	if len(res.Lines) != 0 {
		t.Fatalf("demolition article priced on obra nova: %+v", res.Lines)
	}

	o.Info.TipoObra = catalog.ProjectReabilitacao
	res = o.Compute(cat)
	if len(res.Lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(res.Lines))
	}
}

func TestRequestTipoObra_KeepAndClear(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")

	o.RequestTipoObra(catalog.ProjectObraNova)
	tc := o.UI.TipoObraConfirm
	if tc == nil || tc.Previous != catalog.ProjectReabilitacao || tc.Next != catalog.ProjectObraNova {
		t.Fatalf("confirm = %+v", tc)
	}

	o.ConfirmTipoObra(cat, true)
	if o.Info.TipoObra != catalog.ProjectObraNova {
		t.Fatalf("tipo = %q", o.Info.TipoObra)
	}
	if !o.Selecao.Art["12.1.001"] {
		t.Fatal("keep cleared the selection")
	}

	o.RequestTipoObra(catalog.ProjectReabilitacao)
	o.ConfirmTipoObra(cat, false)
	if o.Selecao.Art["12.1.001"] || o.Selecao.Cap["12"] || o.Selecao.Area["C"] {
		t.Fatalf("clear left selection behind: %+v", o.Selecao)
	}
}

func TestRequestTipoObra_EmptySelectionAppliesImmediately(t *testing.T) {
	_, o := newTestOrcamento(t)

	o.RequestTipoObra(catalog.ProjectObraNova)

	if o.UI.TipoObraConfirm != nil {
		t.Fatalf("confirm staged with empty selection: %+v", o.UI.TipoObraConfirm)
	}
	if o.Info.TipoObra != catalog.ProjectObraNova {
		t.Fatalf("tipo = %q, want obra_nova", o.Info.TipoObra)
	}
}

func TestConfirmTipoObra_ClearCollapsesTree(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")
	o.UI.AreaCollapsed["C"] = false
	o.UI.CapCollapsed["12"] = true
	o.UI.SubCollapsed["12.1"] = true

	o.RequestTipoObra(catalog.ProjectObraNova)
	o.ConfirmTipoObra(cat, false)

	for _, area := range catalog.AreaIDs {
		if !o.UI.AreaCollapsed[area] {
			t.Fatalf("area %s left expanded after clear", area)
		}
	}
	if len(o.UI.CapCollapsed) != 0 || len(o.UI.SubCollapsed) != 0 {
		t.Fatalf("cap/sub collapse state not reset: %+v / %+v", o.UI.CapCollapsed, o.UI.SubCollapsed)
	}
}

func TestRequestTipoObra_SameTypeIsNoop(t *testing.T) {
	_, o := newTestOrcamento(t)
	o.RequestTipoObra(catalog.ProjectReabilitacao)
	if o.UI.TipoObraConfirm != nil {
		t.Fatal("confirm staged for unchanged type")
	}
}

func TestAddCustomLine(t *testing.T) {
	cat, o := newTestOrcamento(t)

	art, err := o.AddCustomLine(cat, "12.1", "Remate especial de vao", "m")
	if err != nil {
		t.Fatalf("AddCustomLine: %v", err)
	}
	if art.ID != "12.1.XC1" {
		t.Fatalf("code = %q, want 12.1.XC1", art.ID)
	}
	if !art.Custom || art.CapID != "12" || art.AreaID != "C" {
		t.Fatalf("article = %+v", art)
	}
	if !o.Selecao.Art[art.ID] || !o.Selecao.Sub["12.1"] {
		t.Fatal("custom line not selected")
	}

	second, err := o.AddCustomLine(cat, "12.1", "Outro remate", "m")
	if err != nil {
		t.Fatalf("second AddCustomLine: %v", err)
	}
	if second.ID != "12.1.XC2" {
		t.Fatalf("second code = %q, want 12.1.XC2", second.ID)
	}
}

func TestRemoveArticle_CustomLineGone(t *testing.T) {
	cat, o := newTestOrcamento(t)
	art, err := o.AddCustomLine(cat, "12.1", "Linha avulsa", "un")
	if err != nil {
		t.Fatalf("AddCustomLine: %v", err)
	}

	o.RemoveArticle(cat, art.ID)

	if o.FindItem(cat, art.ID) != nil {
		t.Fatal("custom line still resolvable")
	}
	if _, ok := o.Inputs[art.ID]; ok {
		t.Fatal("inputs kept for removed custom line")
	}
}

func TestSearch_IgnoresDiacriticsAndCapsResults(t *testing.T) {
	cat, o := newTestOrcamento(t)

	res := o.Search(cat, "alvenária")
	if len(res) == 0 {
		t.Fatal("no results for accented query")
	}
	for _, r := range res {
		if r.Item.CapID != "12" && r.Item.CapID != "17" {
			t.Fatalf("unexpected result %q", r.Item.ID)
		}
	}

	if got := o.Search(cat, "   "); got != nil {
		t.Fatalf("blank query returned %d results", len(got))
	}
}

func TestSearch_MatchesChapterName(t *testing.T) {
	cat, o := newTestOrcamento(t)

	res := o.Search(cat, "licenciamento municipal")
	if len(res) != 1 || res[0].Item.ID != "01.1.001" {
		t.Fatalf("results = %+v", res)
	}
}

func TestAddBySearch_JumpsToArticleStep(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.UI.SearchQuery = "parede"

	if !o.AddBySearch(cat, "12.1.001") {
		t.Fatal("AddBySearch failed")
	}
	if o.UI.Step != 5 {
		t.Fatalf("step = %d, want 5", o.UI.Step)
	}
	if o.UI.AreaCollapsed["C"] || o.UI.CapCollapsed["12"] || o.UI.SubCollapsed["12.1"] {
		t.Fatal("tree not expanded down to the article")
	}
	if o.UI.SearchQuery != "" {
		t.Fatal("search query not cleared")
	}
	if got := o.ConsumePendingScroll(); got != "12.1.001" {
		t.Fatalf("pending scroll = %q", got)
	}
}

func TestSetStep_ArmsPricingFocusOnReview(t *testing.T) {
	_, o := newTestOrcamento(t)

	if err := o.SetStep(6); err != nil {
		t.Fatalf("SetStep: %v", err)
	}
	if !o.ConsumePendingFocus() {
		t.Fatal("focus not armed on entering review")
	}
	if o.ConsumePendingFocus() {
		t.Fatal("focus not one-shot")
	}
	if err := o.SetStep(7); err == nil {
		t.Fatal("step 7 accepted")
	}
}

func TestOrcamento_JSONRoundTrip(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")
	o.SetInput("12.1.001", "3,5", "12,25")
	o.K.Cap["12"] = "1,45"
	o.Info.Cliente = "Condominio Rua das Flores"

	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Orcamento
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back.Normalize(cat, false)

	if !back.Selecao.Art["12.1.001"] || !back.Selecao.Cap["12"] {
		t.Fatalf("selection lost: %+v", back.Selecao)
	}
	nearlyEqual(t, "qty", back.Inputs["12.1.001"].Qty.Float(), 3.5)
	nearlyEqual(t, "pu", back.Inputs["12.1.001"].PU.Float(), 12.25)
	k, origem := back.ResolveK(cat, "12.1.001")
	nearlyEqual(t, "k", k, 1.45)
	if origem != OrigemCapitulo {
		t.Fatalf("origem = %q", origem)
	}
	if back.Info.Cliente != o.Info.Cliente {
		t.Fatalf("cliente = %q", back.Info.Cliente)
	}
}

func TestNormalize_FillsDefaults(t *testing.T) {
	cat := testCatalog()
	o := &Orcamento{}
	o.Normalize(cat, false)

	if o.Info.TipoObra != catalog.ProjectReabilitacao {
		t.Fatalf("tipo = %q", o.Info.TipoObra)
	}
	nearlyEqual(t, "global", o.K.Global.Float(), 1.3)
	nearlyEqual(t, "areaD", o.K.Area["D"].Float(), 1.25)
	if o.UI.Step != 1 || o.UI.View != "home" {
		t.Fatalf("ui = %+v", o.UI)
	}
	if _, ok := o.Inputs["12.1.001"]; !ok {
		t.Fatal("inputs not seeded")
	}
}

func TestBuildDocument_GroupsByChapter(t *testing.T) {
	cat, o := newTestOrcamento(t)
	selectArticle(t, cat, o, "12.1.001")
	selectArticle(t, cat, o, "01.1.001")
	o.SetInput("12.1.001", "10", "5")
	o.SetInput("01.1.001", "1", "200")

	doc := o.BuildDocument(cat, pricing.ModeVenda)

	if len(doc.Capitulos) != 2 {
		t.Fatalf("len(capitulos) = %d, want 2", len(doc.Capitulos))
	}
	if doc.Capitulos[0].CapID != "01" || doc.Capitulos[1].CapID != "12" {
		t.Fatalf("chapter order: %q, %q", doc.Capitulos[0].CapID, doc.Capitulos[1].CapID)
	}
	if doc.Condicoes != DefaultCondicoes {
		t.Fatal("conditions block missing")
	}
	if doc.Total <= 0 {
		t.Fatalf("total = %v", doc.Total)
	}
	if doc.Estrutura != nil {
		t.Fatal("priced document should not carry the structure outline")
	}
}

func TestBuildDocument_StructureOutlineWhenUnpriced(t *testing.T) {
	cat, o := newTestOrcamento(t)
	o.UI.Step = 4
	if _, err := o.SetSelected(cat, LevelSub, "12.1", true); err != nil {
		t.Fatalf("select sub: %v", err)
	}

	doc := o.BuildDocument(cat, pricing.ModeVenda)

	if len(doc.Capitulos) != 0 {
		t.Fatalf("len(capitulos) = %d, want 0", len(doc.Capitulos))
	}
	if len(doc.Estrutura) != 1 {
		t.Fatalf("len(estrutura) = %d, want 1", len(doc.Estrutura))
	}
	area := doc.Estrutura[0]
	if area.AreaID != "C" {
		t.Fatalf("area = %q, want C", area.AreaID)
	}
	if len(area.Capitulos) != 1 || area.Capitulos[0].CapID != "12" {
		t.Fatalf("capitulos = %+v", area.Capitulos)
	}
	subs := area.Capitulos[0].Subs
	if len(subs) != 1 || subs[0].ID != "12.1" || subs[0].Nome != "Paredes exteriores" {
		t.Fatalf("subs = %+v", subs)
	}
}

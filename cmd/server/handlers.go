package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/solid-projects/gestao/internal/budget"
	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/obras"
	"github.com/solid-projects/gestao/internal/pricing"
)

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnw("escrever resposta falhou", "err", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// orcamentoView is the budget document plus everything derived from it.
type orcamentoView struct {
	Orcamento *budget.Orcamento `json:"orcamento"`
	Resumo    pricing.Result    `json:"resumo"`
}

// orcamentoView deep-copies the document so the response can be encoded
// outside the store lock.
func (s *server) orcamentoView() orcamentoView {
	var view orcamentoView
	s.store.View(func(cat *catalog.Catalog, orc *budget.Orcamento, _ []obras.Obra) {
		view.Resumo = orc.Compute(cat)
		raw, err := json.Marshal(orc)
		if err != nil {
			s.log.Errorw("clonar orcamento falhou", "err", err)
			return
		}
		clone := &budget.Orcamento{}
		if err := json.Unmarshal(raw, clone); err != nil {
			s.log.Errorw("clonar orcamento falhou", "err", err)
			return
		}
		view.Orcamento = clone
	})
	return view
}

func (s *server) handleEstado(w http.ResponseWriter, r *http.Request) {
	view := s.orcamentoView()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"orcamento": view.Orcamento,
		"resumo":    view.Resumo,
		"obras":     s.store.Obras(),
		"despesa":   s.flow.State(),
	})
}

func (s *server) handleCatalogo(w http.ResponseWriter, r *http.Request) {
	// Encoded under the store lock: the catalog slices can grow when an
	// article is added.
	var payload []byte
	var encodeErr error
	s.store.View(func(cat *catalog.Catalog, orc *budget.Orcamento, _ []obras.Obra) {
		payload, encodeErr = json.Marshal(map[string]any{
			"versao":    cat.Version,
			"areas":     catalog.AreaTitles,
			"grupos":    cat.GroupedChapters(orc.Info.TipoObra),
			"capitulos": cat.Capitulos,
			"subcaps":   cat.Subcapitulos,
			"itens":     orc.Items(cat),
			"unidades":  catalog.UnitOptions,
		})
	})
	if encodeErr != nil {
		s.writeError(w, http.StatusInternalServerError, encodeErr)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.log.Warnw("escrever resposta falhou", "err", err)
	}
}

func (s *server) handleCatalogoAddArtigo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubcapID string `json:"subcapId"`
		Desc     string `json:"desc"`
		Unidade  string `json:"unidade"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	art, err := s.store.AddArticle(req.SubcapID, req.Desc, req.Unidade)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, art)
}

func (s *server) handleOrcamentoGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleOrcamentoReset(w http.ResponseWriter, r *http.Request) {
	s.store.ResetOrcamento()
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleOrcamentoPasso(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passo int `json:"passo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		return orc.SetStep(req.Passo)
	})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleOrcamentoInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cliente *string `json:"cliente"`
		Local   *string `json:"local"`
		Data    *string `json:"data"`
		Versao  *string `json:"versao"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		if req.Cliente != nil {
			orc.Info.Cliente = *req.Cliente
		}
		if req.Local != nil {
			orc.Info.Local = *req.Local
		}
		if req.Data != nil {
			orc.Info.Data = *req.Data
		}
		if req.Versao != nil {
			orc.Info.Versao = *req.Versao
		}
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleOrcamentoCondicoes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Condicoes string `json:"condicoes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		orc.Condicoes = req.Condicoes
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleSelecao(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nivel       string `json:"nivel"`
		ID          string `json:"id"`
		Selecionado bool   `json:"selecionado"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pc, err := s.store.SetSelected(budget.Level(req.Nivel), req.ID, req.Selecionado)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, budget.ErrWrongStep) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cascata":   pc,
		"orcamento": s.orcamentoView().Orcamento,
	})
}

func (s *server) handleSelecaoCascata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmar bool `json:"confirmar"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.store.ResolveCascade(req.Confirmar)
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleInputs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
		Qty  string `json:"qty"`
		PU   string `json:"pu"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		orc.SetInput(req.Code, req.Qty, req.PU)
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleMargens(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nivel string `json:"nivel"`
		ID    string `json:"id"`
		Valor string `json:"valor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		orc.SetMargin(budget.Level(req.Nivel), req.ID, req.Valor)
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleTipoObra(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tipo string `json:"tipo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	tipo := catalog.ProjectType(req.Tipo)
	if tipo != catalog.ProjectReabilitacao && tipo != catalog.ProjectObraNova {
		s.writeError(w, http.StatusUnprocessableEntity, errors.New("tipo de obra desconhecido"))
		return
	}
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		orc.RequestTipoObra(tipo)
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleTipoObraConfirmar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Manter bool `json:"manter"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	_ = s.store.Mutate(func(cat *catalog.Catalog, orc *budget.Orcamento) error {
		orc.ConfirmTipoObra(cat, req.Manter)
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleTipoObraCancelar(w http.ResponseWriter, r *http.Request) {
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		orc.CancelTipoObra()
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handlePesquisa(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	var results []budget.SearchResult
	s.store.View(func(cat *catalog.Catalog, orc *budget.Orcamento, _ []obras.Obra) {
		results = orc.Search(cat, query)
	})
	if results == nil {
		results = []budget.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *server) handlePesquisaAdicionar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.store.Mutate(func(cat *catalog.Catalog, orc *budget.Orcamento) error {
		if !orc.AddBySearch(cat, req.Code) {
			return errors.New("artigo desconhecido")
		}
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleLinhaPersonalizada(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubcapID string `json:"subcapId"`
		Desc     string `json:"desc"`
		Unidade  string `json:"unidade"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var created *catalog.Article
	err := s.store.Mutate(func(cat *catalog.Catalog, orc *budget.Orcamento) error {
		art, err := orc.AddCustomLine(cat, req.SubcapID, req.Desc, req.Unidade)
		if err != nil {
			return err
		}
		created = art
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleRemoverArtigo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	_ = s.store.Mutate(func(cat *catalog.Catalog, orc *budget.Orcamento) error {
		orc.RemoveArticle(cat, code)
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handlePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nome string `json:"nome"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.store.Mutate(func(cat *catalog.Catalog, orc *budget.Orcamento) error {
		if !orc.ApplyPreset(cat, req.Nome) {
			return errors.New("preset desconhecido")
		}
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleResumo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orcamentoView().Resumo)
}

func (s *server) handleDocumento(w http.ResponseWriter, r *http.Request) {
	mode := pricing.ModeVenda
	if r.URL.Query().Get("modo") == "seco" {
		mode = pricing.ModeSeco
	}
	var doc budget.Document
	s.store.View(func(cat *catalog.Catalog, orc *budget.Orcamento, _ []obras.Obra) {
		doc = orc.BuildDocument(cat, mode)
	})
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *server) handleObrasList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Obras())
}

func (s *server) handleObrasCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ano  string `json:"ano"`
		NNN  string `json:"nnn"`
		Nome string `json:"nome"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ob, err := s.store.SaveObra(req.Ano, req.NNN, req.Nome)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ob)
}

func (s *server) handleObraRascunho(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ano       *string `json:"ano"`
		NNN       string  `json:"nnn"`
		Nome      string  `json:"nome"`
		NNNManual bool    `json:"nnnManual"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Ano == nil {
		s.store.OpenObraModal()
	} else {
		s.store.UpdateObraDraft(*req.Ano, req.NNN, req.Nome, req.NNNManual)
	}
	s.writeJSON(w, http.StatusOK, s.orcamentoView().Orcamento.UI.ObraDraft)
}

func (s *server) handleObraRascunhoFechar(w http.ResponseWriter, r *http.Request) {
	_ = s.store.Mutate(func(_ *catalog.Catalog, orc *budget.Orcamento) error {
		orc.CloseObraModal()
		return nil
	})
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

func (s *server) handleOrcamentoObra(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codigo string `json:"codigo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.store.SelectObra(req.Codigo) {
		s.writeError(w, http.StatusNotFound, errors.New("obra desconhecida"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

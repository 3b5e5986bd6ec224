package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solid-projects/gestao/internal/apiclient"
	"github.com/solid-projects/gestao/internal/custos"
)

const maxFotoBytes = 16 << 20

func (s *server) handleDespesaGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"despesa":  s.flow.State(),
		"enviando": s.flow.Sending(),
	})
}

func (s *server) handleDespesaFoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFotoBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("formulario invalido"))
		return
	}
	file, header, err := r.FormFile("foto")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("fotografia em falta"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxFotoBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("fotografia ilegivel"))
		return
	}
	if err := s.flow.AttachFoto(header.Filename, data); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *server) handleDespesaRecorte(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFotoBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("recorte ilegivel"))
		return
	}
	if err := s.flow.ApplyRecorte(data); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *server) handleDespesaRecorteCancelar(w http.ResponseWriter, r *http.Request) {
	s.flow.CancelRecorte()
	s.writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *server) handleDespesaVoltar(w http.ResponseWriter, r *http.Request) {
	s.flow.VoltarRecorte()
	s.writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *server) handleDespesaCentro(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Codigo string `json:"codigo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.flow.SetCentroCusto(req.Codigo)
	s.writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *server) handleDespesaEnviar(w http.ResponseWriter, r *http.Request) {
	if err := s.flow.Submit(r.Context(), s.api); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, custos.ErrEnvioPendente) {
			status = http.StatusConflict
		}
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.flow.State())
}

func (s *server) handleCentrosCusto(w http.ResponseWriter, r *http.Request) {
	centros, err := s.api.CentrosCusto(r.Context())
	if err != nil {
		// The screen stays usable without the back office; it just offers
		// no cost centers.
		s.log.Warnw("centros de custo indisponiveis", "err", err)
		centros = []apiclient.CentroCusto{}
	}
	s.writeJSON(w, http.StatusOK, centros)
}

func (s *server) handleOrcamentosRemotos(w http.ResponseWriter, r *http.Request) {
	list, err := s.api.Orcamentos(r.Context())
	if err != nil {
		s.log.Warnw("arquivo remoto indisponivel", "err", err)
		list = []apiclient.OrcamentoRemoto{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *server) handleBaseDados(w http.ResponseWriter, r *http.Request) {
	rows, err := s.api.BaseDados(r.Context(), chi.URLParam(r, "tabela"), r.URL.Query().Get("q"))
	if err != nil {
		s.log.Warnw("base de dados indisponivel", "err", err)
		rows = []apiclient.Row{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dados": rows})
}

func (s *server) handleCustosObras(w http.ResponseWriter, r *http.Request) {
	rows, err := s.api.CustosObras(r.Context())
	if err != nil {
		s.log.Warnw("custos por obra indisponiveis", "err", err)
		rows = []apiclient.Row{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *server) handleCustosCapitulos(w http.ResponseWriter, r *http.Request) {
	rows, err := s.api.CustosCapitulos(r.Context())
	if err != nil {
		s.log.Warnw("capitulos de custos indisponiveis", "err", err)
		rows = []apiclient.Row{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *server) handleCustosDaObra(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := s.api.CustosDaObra(r.Context(), chi.URLParam(r, "id"), q.Get("tipo"), q.Get("capitulo"))
	if err != nil {
		s.log.Warnw("custos da obra indisponiveis", "err", err)
		rows = []apiclient.Row{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

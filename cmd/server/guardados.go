package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solid-projects/gestao/internal/budget"
	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/obras"
)

// guardadoListItem is one row of the saved budget archive.
type guardadoListItem struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"createdAt"`
	Obra      string  `json:"obra"`
	Cliente   string  `json:"cliente"`
	Data      string  `json:"data"`
	Versao    string  `json:"versao"`
	Total     float64 `json:"total"`
}

func (s *server) handleGuardadosList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := s.listGuardados(query)
	if err != nil {
		s.log.Errorw("listar orcamentos guardados falhou", "err", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("falha ao listar orcamentos"))
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *server) listGuardados(query string) ([]guardadoListItem, error) {
	search := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT
			id,
			created_at,
			obra,
			cliente,
			data_orcamento,
			versao,
			totals_json
		FROM orcamentos_guardados
		WHERE (? = '' OR obra LIKE ? OR cliente LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]guardadoListItem, 0)
	for rows.Next() {
		var item guardadoListItem
		var totalsJSON string
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.Obra, &item.Cliente, &item.Data, &item.Versao, &totalsJSON); err != nil {
			return nil, err
		}
		item.Total = extractTotalFromJSON(totalsJSON)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func extractTotalFromJSON(totalsJSON string) float64 {
	var values map[string]float64
	if err := json.Unmarshal([]byte(totalsJSON), &values); err != nil {
		return 0
	}

	for _, key := range []string{"totalGeralVenda", "total", "totalGeralSeco"} {
		if total, ok := values[key]; ok {
			return total
		}
	}

	return 0
}

// handleGuardadosSave snapshots the working budget into the archive.
func (s *server) handleGuardadosSave(w http.ResponseWriter, r *http.Request) {
	var (
		doc    []byte
		totals []byte
		info   budget.Info
	)
	var encodeErr error
	s.store.View(func(cat *catalog.Catalog, orc *budget.Orcamento, _ []obras.Obra) {
		info = orc.Info
		res := orc.Compute(cat)
		if doc, encodeErr = json.Marshal(orc); encodeErr != nil {
			return
		}
		totals, encodeErr = json.Marshal(res.Totals)
	})
	if encodeErr != nil {
		s.writeError(w, http.StatusInternalServerError, encodeErr)
		return
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC().Format("2006-01-02 15:04:05")
	_, err := s.db.Exec(`
		INSERT INTO orcamentos_guardados (id, created_at, obra, cliente, data_orcamento, versao, totals_json, doc_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, createdAt, info.Obra, info.Cliente, info.Data, info.Versao, string(totals), string(doc))
	if err != nil {
		s.log.Errorw("guardar orcamento falhou", "err", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("falha ao guardar orcamento"))
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id, "createdAt": createdAt})
}

func (s *server) loadGuardado(id string) (*budget.Orcamento, error) {
	var docJSON string
	err := s.db.QueryRow(`SELECT doc_json FROM orcamentos_guardados WHERE id = ?`, id).Scan(&docJSON)
	if err != nil {
		return nil, err
	}
	orc := &budget.Orcamento{}
	if err := json.Unmarshal([]byte(docJSON), orc); err != nil {
		return nil, err
	}
	return orc, nil
}

func (s *server) handleGuardadosGet(w http.ResponseWriter, r *http.Request) {
	orc, err := s.loadGuardado(chi.URLParam(r, "id"))
	if err == sql.ErrNoRows {
		s.writeError(w, http.StatusNotFound, errors.New("orcamento desconhecido"))
		return
	}
	if err != nil {
		s.log.Errorw("carregar orcamento guardado falhou", "err", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("falha ao carregar orcamento"))
		return
	}
	s.writeJSON(w, http.StatusOK, orc)
}

// handleGuardadosRestore replaces the working budget with an archived one.
func (s *server) handleGuardadosRestore(w http.ResponseWriter, r *http.Request) {
	orc, err := s.loadGuardado(chi.URLParam(r, "id"))
	if err == sql.ErrNoRows {
		s.writeError(w, http.StatusNotFound, errors.New("orcamento desconhecido"))
		return
	}
	if err != nil {
		s.log.Errorw("restaurar orcamento guardado falhou", "err", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("falha ao restaurar orcamento"))
		return
	}
	s.store.ReplaceOrcamento(orc)
	s.writeJSON(w, http.StatusOK, s.orcamentoView())
}

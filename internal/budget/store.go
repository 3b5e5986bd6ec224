package budget

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/obras"
)

// Persister writes the durable state blobs. Every mutation through the
// Store persists the pieces it touched before returning.
type Persister interface {
	SaveOrcamento(o *Orcamento) error
	SaveObras(list []obras.Obra) error
	SaveCatalogo(cat *catalog.Catalog) error
}

// Store owns the live application state: the catalog, the working budget
// and the work registry. All mutation goes through it, serialized by a
// mutex, and is persisted on the way out.
type Store struct {
	mu      sync.Mutex
	log     *zap.SugaredLogger
	cat     *catalog.Catalog
	orc     *Orcamento
	obras   []obras.Obra
	persist Persister
}

// NewStore wires loaded state into a store. The budget is normalized
// before first use.
func NewStore(log *zap.SugaredLogger, cat *catalog.Catalog, orc *Orcamento, registry []obras.Obra, persist Persister, isNew bool) *Store {
	if registry == nil {
		registry = []obras.Obra{}
	}
	orc.Normalize(cat, isNew)
	return &Store{log: log, cat: cat, orc: orc, obras: registry, persist: persist}
}

// View runs fn with a read-consistent look at the state. fn must not
// retain or mutate its arguments.
func (s *Store) View(fn func(cat *catalog.Catalog, orc *Orcamento, registry []obras.Obra)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cat, s.orc, s.obras)
}

func (s *Store) saveOrc() {
	if err := s.persist.SaveOrcamento(s.orc); err != nil {
		s.log.Warnw("persistencia do orcamento falhou", "err", err)
	}
}

func (s *Store) saveObras() {
	if err := s.persist.SaveObras(s.obras); err != nil {
		s.log.Warnw("persistencia das obras falhou", "err", err)
	}
}

func (s *Store) saveCat() {
	if err := s.persist.SaveCatalogo(s.cat); err != nil {
		s.log.Warnw("persistencia do catalogo falhou", "err", err)
	}
}

// Mutate runs fn against the working budget and persists it. fn returning
// an error aborts persistence.
func (s *Store) Mutate(fn func(cat *catalog.Catalog, orc *Orcamento) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.cat, s.orc); err != nil {
		return err
	}
	s.saveOrc()
	return nil
}

// SetSelected toggles selection at a level, possibly parking a cascade.
func (s *Store) SetSelected(level Level, id string, selected bool) (*PendingCascade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, err := s.orc.SetSelected(s.cat, level, id, selected)
	if err != nil {
		return nil, err
	}
	s.saveOrc()
	return pc, nil
}

// ResolveCascade confirms or declines the parked deselection.
func (s *Store) ResolveCascade(confirm bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if confirm {
		s.orc.ConfirmCascade(s.cat)
	} else {
		s.orc.DeclineCascade()
	}
	s.saveOrc()
}

// Obras returns a copy of the work registry.
func (s *Store) Obras() []obras.Obra {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]obras.Obra, len(s.obras))
	copy(out, s.obras)
	return out
}

// SaveObra validates and appends a new work record, binds it to the budget
// header and closes the draft. Validation failures land on UI.ObraError
// and are also returned.
func (s *Store) SaveObra(yearInput, nnn, nome string) (*obras.Obra, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, err := obras.Create(s.obras, yearInput, nnn, nome)
	if err != nil {
		s.orc.UI.ObraError = err.Error()
		s.saveOrc()
		return nil, err
	}
	s.obras = append(s.obras, ob)
	s.orc.AttachObra(ob)
	s.orc.CloseObraModal()
	s.saveObras()
	s.saveOrc()
	return &ob, nil
}

// SelectObra binds an existing work record to the budget header.
func (s *Store) SelectObra(codigo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob := obras.Find(s.obras, codigo)
	if ob == nil {
		return false
	}
	s.orc.AttachObra(*ob)
	s.saveOrc()
	return true
}

// OpenObraModal starts a work draft suggesting the next free sequence.
func (s *Store) OpenObraModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orc.OpenObraModal(s.obras, time.Now().Year())
	s.saveOrc()
}

// UpdateObraDraft folds an edit into the open draft.
func (s *Store) UpdateObraDraft(yearInput, nnn, nome string, nnnManual bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orc.UpdateObraDraft(s.obras, yearInput, nnn, nome, nnnManual)
	s.saveOrc()
}

// AddArticle appends a permanent article to the catalog under a
// sub-chapter, selects it and jumps to the chapter step.
func (s *Store) AddArticle(subID, desc, unit string) (*catalog.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	art, err := s.cat.AddArticle(subID, desc, unit)
	if err != nil {
		return nil, err
	}
	s.orc.Inputs[art.ID] = LineVals{Qty: "0", PU: "0"}
	s.orc.Selecao.Art[art.ID] = true
	s.orc.RebuildFromArticles(s.cat)
	s.orc.setStepInternal(3)
	s.saveCat()
	s.saveOrc()
	return &art, nil
}

// ResetOrcamento replaces the working budget with a fresh document.
func (s *Store) ResetOrcamento() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orc = New(s.cat)
	s.orc.Normalize(s.cat, true)
	s.saveOrc()
}

// ReplaceOrcamento swaps in a restored document, normalizing it first.
func (s *Store) ReplaceOrcamento(o *Orcamento) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Normalize(s.cat, false)
	s.orc = o
	s.saveOrc()
}

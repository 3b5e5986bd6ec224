// Package custos holds the expense registration flow and the local cost
// movement cache.
package custos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Step is one stage of the expense registration flow.
type Step string

const (
	StepFoto    Step = "foto"
	StepRecorte Step = "recorte"
	StepEnviar  Step = "enviar"
)

// Movimento is one cost movement cached from the back office.
type Movimento struct {
	Data        string  `json:"data"`
	ObraCodigo  string  `json:"obraCodigo"`
	Capitulo    string  `json:"capitulo"`
	Descricao   string  `json:"descricao"`
	Tipo        string  `json:"tipo"`
	Valor       float64 `json:"valor"`
}

// Registar is the state of the in-progress expense registration.
type Registar struct {
	Step        Step   `json:"step"`
	CentroCusto string `json:"centroCusto"`
	FotoNome    string `json:"fotoNome"`
	Mensagem    string `json:"mensagem"`
	MensagemOK  bool   `json:"mensagemOk"`
}

// State is the persisted custos document: the movement cache plus the
// registration flow and list filters.
type State struct {
	Movimentos []Movimento `json:"movimentos"`
	ObraFiltro string      `json:"obraFiltro"`
	DataInicio string      `json:"dataInicio"`
	DataFim    string      `json:"dataFim"`
	Registar   Registar    `json:"registar"`
}

// NewState returns a fresh custos document at the photo step.
func NewState() *State {
	return &State{
		Movimentos: []Movimento{},
		Registar:   Registar{Step: StepFoto},
	}
}

// Normalize repairs a document restored from persistence.
func (st *State) Normalize() {
	if st.Movimentos == nil {
		st.Movimentos = []Movimento{}
	}
	switch st.Registar.Step {
	case StepFoto, StepRecorte, StepEnviar:
	default:
		st.Registar.Step = StepFoto
	}
}

// Sender posts an expense to the back office. Implemented by
// apiclient.Client.
type Sender interface {
	RegistarDespesa(ctx context.Context, centroCusto, filename string, foto io.Reader) error
}

// Flow drives the three-step expense registration. The photo bytes live
// only in memory; only the flow metadata is persisted via State.
type Flow struct {
	mu      sync.Mutex
	log     *zap.SugaredLogger
	state   *State
	save    func(*State) error
	foto    []byte
	recorte []byte
	sending bool
}

// NewFlow binds a flow to its document and persistence callback.
func NewFlow(log *zap.SugaredLogger, state *State, save func(*State) error) *Flow {
	state.Normalize()
	return &Flow{log: log, state: state, save: save}
}

func (f *Flow) persist() {
	if err := f.save(f.state); err != nil {
		f.log.Warnw("persistencia dos custos falhou", "err", err)
	}
}

// State returns a copy of the persisted document.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := *f.state
	st.Movimentos = append([]Movimento(nil), f.state.Movimentos...)
	return st
}

// SetFilters updates the movement list filters.
func (f *Flow) SetFilters(obra, inicio, fim string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.ObraFiltro = obra
	f.state.DataInicio = inicio
	f.state.DataFim = fim
	f.persist()
}

// ReplaceMovimentos swaps the cached movement list.
func (f *Flow) ReplaceMovimentos(ms []Movimento) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ms == nil {
		ms = []Movimento{}
	}
	f.state.Movimentos = ms
	f.persist()
}

// AttachFoto stores the captured photo and moves to the crop step.
func (f *Flow) AttachFoto(nome string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) == 0 {
		return fmt.Errorf("fotografia vazia")
	}
	f.foto = data
	f.recorte = nil
	f.state.Registar.FotoNome = nome
	f.state.Registar.Step = StepRecorte
	f.state.Registar.Mensagem = ""
	f.persist()
	return nil
}

// ApplyRecorte stores the cropped image and moves to the submit step.
// Empty crop data keeps the original photo.
func (f *Flow) ApplyRecorte(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Registar.Step != StepRecorte {
		return fmt.Errorf("sem fotografia para recortar")
	}
	if len(data) > 0 {
		f.recorte = data
	} else {
		f.recorte = f.foto
	}
	f.state.Registar.Step = StepEnviar
	f.persist()
	return nil
}

// CancelRecorte discards the photo and returns to the capture step.
func (f *Flow) CancelRecorte() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset("")
	f.persist()
}

// VoltarRecorte steps back from submit to crop, keeping the photo.
func (f *Flow) VoltarRecorte() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Registar.Step == StepEnviar {
		f.state.Registar.Step = StepRecorte
		f.recorte = nil
		f.persist()
	}
}

// SetCentroCusto picks the cost center the expense books against.
func (f *Flow) SetCentroCusto(codigo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Registar.CentroCusto = codigo
	f.persist()
}

// ErrEnvioPendente means a submission is already in flight.
var ErrEnvioPendente = fmt.Errorf("envio ja em curso")

// Submit posts the expense. While a submission is in flight further
// submits are rejected. On success the flow resets to the photo step; on
// failure the server detail lands on the message and the flow stays at
// the submit step for a manual retry.
func (f *Flow) Submit(ctx context.Context, sender Sender) error {
	f.mu.Lock()
	if f.sending {
		f.mu.Unlock()
		return ErrEnvioPendente
	}
	if f.state.Registar.Step != StepEnviar {
		f.mu.Unlock()
		return fmt.Errorf("fluxo fora do passo de envio")
	}
	if f.state.Registar.CentroCusto == "" {
		f.mu.Unlock()
		return fmt.Errorf("escolha um centro de custo")
	}
	centro := f.state.Registar.CentroCusto
	nome := f.state.Registar.FotoNome
	if nome == "" {
		nome = "despesa.jpg"
	}
	payload := f.recorte
	f.sending = true
	f.mu.Unlock()

	err := sender.RegistarDespesa(ctx, centro, nome, bytes.NewReader(payload))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sending = false
	if err != nil {
		f.state.Registar.Mensagem = err.Error()
		f.state.Registar.MensagemOK = false
		f.persist()
		return err
	}
	f.reset("despesa registada")
	f.state.Registar.MensagemOK = true
	f.persist()
	return nil
}

// Sending reports whether a submission is in flight.
func (f *Flow) Sending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sending
}

func (f *Flow) reset(msg string) {
	f.foto = nil
	f.recorte = nil
	f.state.Registar = Registar{Step: StepFoto, Mensagem: msg}
}

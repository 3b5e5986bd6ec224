package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/solid-projects/gestao/internal/apiclient"
	"github.com/solid-projects/gestao/internal/blob"
	"github.com/solid-projects/gestao/internal/budget"
	"github.com/solid-projects/gestao/internal/catalog"
	"github.com/solid-projects/gestao/internal/config"
	"github.com/solid-projects/gestao/internal/custos"
	"github.com/solid-projects/gestao/internal/db"
	"github.com/solid-projects/gestao/internal/migrations"
	"github.com/solid-projects/gestao/internal/obras"
	"github.com/solid-projects/gestao/internal/seed"
)

type server struct {
	log   *zap.SugaredLogger
	db    *sql.DB
	store *budget.Store
	flow  *custos.Flow
	api   *apiclient.Client
}

// blobPersister satisfies budget.Persister over the blob store.
type blobPersister struct {
	blobs *blob.Store
}

func (p blobPersister) SaveOrcamento(o *budget.Orcamento) error {
	return p.blobs.Save(blob.KeyOrcamento, o)
}

func (p blobPersister) SaveObras(list []obras.Obra) error {
	return p.blobs.Save(blob.KeyObras, list)
}

func (p blobPersister) SaveCatalogo(cat *catalog.Catalog) error {
	return p.blobs.Save(blob.KeyCatalogo, cat)
}

func newLogger(isDev bool) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if isDev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger.Sugar()
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg.IsDev())
	defer log.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalw("abrir base de dados falhou", "err", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		log.Fatalw("migracoes falharam", "err", err)
	}

	blobs := blob.NewStore(database)
	stats, err := seed.Run(blobs)
	if err != nil {
		log.Fatalw("seed inicial falhou", "err", err)
	}
	if stats.Inserts+stats.Updates > 0 {
		log.Infow("estado inicial preparado", "inserts", stats.Inserts, "updates", stats.Updates)
	}

	srv, err := newServer(log, database, blobs, apiclient.New(cfg.APIBaseURL))
	if err != nil {
		log.Fatalw("arranque do servidor falhou", "err", err)
	}

	addr := ":" + cfg.Port
	log.Infow("a escutar", "addr", addr)
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatalw("servidor parou", "err", err)
	}
}

// newServer loads the persisted documents and wires the application state.
func newServer(log *zap.SugaredLogger, database *sql.DB, blobs *blob.Store, api *apiclient.Client) (*server, error) {
	var cat catalog.Catalog
	if _, err := blobs.Load(blob.KeyCatalogo, &cat); err != nil {
		return nil, err
	}

	orc := &budget.Orcamento{}
	found, err := blobs.Load(blob.KeyOrcamento, orc)
	if err != nil {
		log.Warnw("orcamento persistido ilegivel, a recomecar", "err", err)
		found = false
	}
	if !found {
		orc = budget.New(&cat)
	}

	var registry []obras.Obra
	if _, err := blobs.Load(blob.KeyObras, &registry); err != nil {
		return nil, err
	}

	state := custos.NewState()
	if _, err := blobs.Load(blob.KeyCustos, state); err != nil {
		log.Warnw("custos persistidos ilegiveis, a recomecar", "err", err)
		state = custos.NewState()
	}

	persist := blobPersister{blobs: blobs}
	return &server{
		log:   log,
		db:    database,
		store: budget.NewStore(log, &cat, orc, registry, persist, !found),
		flow: custos.NewFlow(log, state, func(st *custos.State) error {
			return blobs.Save(blob.KeyCustos, st)
		}),
		api: api,
	}, nil
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/estado", s.handleEstado)
		r.Get("/catalogo", s.handleCatalogo)
		r.Post("/catalogo/artigos", s.handleCatalogoAddArtigo)

		r.Route("/orcamento", func(r chi.Router) {
			r.Get("/", s.handleOrcamentoGet)
			r.Post("/reset", s.handleOrcamentoReset)
			r.Post("/passo", s.handleOrcamentoPasso)
			r.Post("/info", s.handleOrcamentoInfo)
			r.Post("/condicoes", s.handleOrcamentoCondicoes)
			r.Post("/selecao", s.handleSelecao)
			r.Post("/selecao/cascata", s.handleSelecaoCascata)
			r.Post("/inputs", s.handleInputs)
			r.Post("/margens", s.handleMargens)
			r.Post("/tipo-obra", s.handleTipoObra)
			r.Post("/tipo-obra/confirmar", s.handleTipoObraConfirmar)
			r.Post("/tipo-obra/cancelar", s.handleTipoObraCancelar)
			r.Get("/pesquisa", s.handlePesquisa)
			r.Post("/pesquisa/adicionar", s.handlePesquisaAdicionar)
			r.Post("/linhas-personalizadas", s.handleLinhaPersonalizada)
			r.Delete("/artigos/{code}", s.handleRemoverArtigo)
			r.Post("/preset", s.handlePreset)
			r.Post("/obra", s.handleOrcamentoObra)
			r.Get("/resumo", s.handleResumo)
			r.Get("/documento", s.handleDocumento)
		})

		r.Route("/obras", func(r chi.Router) {
			r.Get("/", s.handleObrasList)
			r.Post("/", s.handleObrasCreate)
			r.Post("/rascunho", s.handleObraRascunho)
			r.Post("/rascunho/fechar", s.handleObraRascunhoFechar)
		})

		r.Route("/orcamentos-guardados", func(r chi.Router) {
			r.Get("/", s.handleGuardadosList)
			r.Post("/", s.handleGuardadosSave)
			r.Get("/{id}", s.handleGuardadosGet)
			r.Post("/{id}/restaurar", s.handleGuardadosRestore)
		})

		r.Route("/despesa", func(r chi.Router) {
			r.Get("/", s.handleDespesaGet)
			r.Post("/foto", s.handleDespesaFoto)
			r.Post("/recorte", s.handleDespesaRecorte)
			r.Post("/recorte/cancelar", s.handleDespesaRecorteCancelar)
			r.Post("/voltar", s.handleDespesaVoltar)
			r.Post("/centro", s.handleDespesaCentro)
			r.Post("/enviar", s.handleDespesaEnviar)
		})

		r.Get("/centros-custo", s.handleCentrosCusto)
		r.Get("/orcamentos-remotos", s.handleOrcamentosRemotos)
		r.Get("/base-dados/{tabela}", s.handleBaseDados)
		r.Get("/custos/obras", s.handleCustosObras)
		r.Get("/custos/capitulos", s.handleCustosCapitulos)
		r.Get("/custos/obras/{id}", s.handleCustosDaObra)
	})

	return r
}

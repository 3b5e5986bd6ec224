// Package apiclient talks to the company back office API: cost centers,
// expense registration and the historical budget/cost lookups.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin JSON client over the back office API. A nil base URL
// is allowed: every call then fails with ErrNotConfigured so callers can
// degrade to empty data.
type Client struct {
	base string
	http *http.Client
}

// ErrNotConfigured means no API base URL was provided.
var ErrNotConfigured = fmt.Errorf("api nao configurada")

// New builds a client for the given base URL, e.g. "https://gestao.example.pt".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response. Detail carries the server's "detail"
// field when the body had one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("api respondeu %d", e.Status)
}

// CentroCusto is a cost center a expense can be booked against.
type CentroCusto struct {
	Codigo string `json:"codigo"`
	Nome   string `json:"nome"`
}

// OrcamentoRemoto is a budget header from the remote archive.
type OrcamentoRemoto struct {
	ID      string  `json:"id"`
	Obra    string  `json:"obra"`
	Cliente string  `json:"cliente"`
	Data    string  `json:"data"`
	Total   float64 `json:"total"`
}

// Row is one record of a base-de-dados listing; layouts vary per table so
// rows stay schemaless.
type Row = map[string]any

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.base == "" {
		return ErrNotConfigured
	}
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		apiErr.Detail = body.Detail
	}
	return apiErr
}

// CentrosCusto lists the cost centers available for expense registration.
func (c *Client) CentrosCusto(ctx context.Context) ([]CentroCusto, error) {
	var out []CentroCusto
	if err := c.get(ctx, "/api/centros-custo", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RegistarDespesa uploads an expense photo against a cost center as a
// multipart form. There is no retry: the caller surfaces the error and the
// user resubmits.
func (c *Client) RegistarDespesa(ctx context.Context, centroCusto, filename string, foto io.Reader) error {
	if c.base == "" {
		return ErrNotConfigured
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("centro_custo_codigo", centroCusto); err != nil {
		return fmt.Errorf("write centro_custo_codigo: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, foto); err != nil {
		return fmt.Errorf("copy foto: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/registar-despesa", &buf)
	if err != nil {
		return fmt.Errorf("build registar-despesa request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call registar-despesa: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	return nil
}

// Orcamentos lists the remote budget archive.
func (c *Client) Orcamentos(ctx context.Context) ([]OrcamentoRemoto, error) {
	var out []OrcamentoRemoto
	if err := c.get(ctx, "/api/orcamentos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BaseDados queries one of the reference tables. The endpoint wraps its
// rows in a "dados" envelope.
func (c *Client) BaseDados(ctx context.Context, tabela, pesquisa string) ([]Row, error) {
	q := url.Values{}
	if pesquisa != "" {
		q.Set("q", pesquisa)
	}
	var out struct {
		Dados []Row `json:"dados"`
	}
	if err := c.get(ctx, "/api/base-dados/"+url.PathEscape(tabela), q, &out); err != nil {
		return nil, err
	}
	return out.Dados, nil
}

// CustosObras lists the works that have booked costs.
func (c *Client) CustosObras(ctx context.Context) ([]Row, error) {
	var out []Row
	if err := c.get(ctx, "/api/custos/obras", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CustosCapitulos lists the chapter breakdown used by the cost views.
func (c *Client) CustosCapitulos(ctx context.Context) ([]Row, error) {
	var out []Row
	if err := c.get(ctx, "/api/custos/capitulos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CustosDaObra lists the booked costs of one work, optionally filtered by
// movement type and chapter.
func (c *Client) CustosDaObra(ctx context.Context, obraID, tipo, capitulo string) ([]Row, error) {
	q := url.Values{}
	if tipo != "" {
		q.Set("tipo", tipo)
	}
	if capitulo != "" {
		q.Set("capitulo", capitulo)
	}
	var out []Row
	if err := c.get(ctx, "/api/custos/obras/"+url.PathEscape(obraID), q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

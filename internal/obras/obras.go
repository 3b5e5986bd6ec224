// Package obras holds the registry of construction works ("obras"), each
// identified by a period-coded identifier of the form AA.NNN.
package obras

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Obra is one work record. Records are append-only: once created they are
// never mutated.
type Obra struct {
	ObraCodigo  string `json:"obraCodigo"`
	ObraNome    string `json:"obraNome"`
	AnoInicio   int    `json:"anoInicio"`
	ObraDisplay string `json:"obraDisplay"`
	Estado      string `json:"estado"`
	Notas       string `json:"notas"`
}

var (
	// ErrCodigoInvalido means the computed code does not match AA.NNN.
	ErrCodigoInvalido = errors.New("codigo invalido, use AA.NNN")
	// ErrNomeObrigatorio means the work name is missing.
	ErrNomeObrigatorio = errors.New("nome da obra e obrigatorio")
	// ErrCodigoDuplicado means the code already exists in the registry.
	ErrCodigoDuplicado = errors.New("codigo ja existe")
)

var codigoRe = regexp.MustCompile(`^\d{2}\.\d{3}$`)

// NormalizeYear interprets a year input: 2 digits become 20xx, 4 digits are
// used as given, anything else is invalid. It returns the full year and the
// two-digit code prefix.
func NormalizeYear(value string) (ano int, aa string, ok bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
	switch len(digits) {
	case 2:
		ano, _ = strconv.Atoi("20" + digits)
		return ano, digits, true
	case 4:
		ano, _ = strconv.Atoi(digits)
		return ano, digits[2:], true
	default:
		return 0, "", false
	}
}

// Pad3 formats a sequence number to three digits.
func Pad3(n int) string {
	return fmt.Sprintf("%03d", n)
}

// Display builds the "<code> - <name>" display string.
func Display(codigo, nome string) string {
	return codigo + " - " + nome
}

// NextNumber suggests the next free sequence for the given two-digit prefix:
// max existing sequence with that prefix + 1, formatted to three digits.
func NextNumber(aa string, registry []Obra) string {
	max := 0
	prefix := aa + "."
	for _, o := range registry {
		if !strings.HasPrefix(o.ObraCodigo, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(o.ObraCodigo, prefix)); err == nil && n > max {
			max = n
		}
	}
	return Pad3(max + 1)
}

// Create validates and builds a new work record from user input. The
// returned record is not appended; callers append it and persist the
// registry on success. Each validation failure carries a distinct error.
func Create(registry []Obra, yearInput, nnnInput, nome string) (Obra, error) {
	ano, aa, _ := NormalizeYear(yearInput)
	nnn := normalizeNNN(nnnInput)
	nome = strings.TrimSpace(nome)

	codigo := aa + "." + nnn
	if !codigoRe.MatchString(codigo) {
		return Obra{}, ErrCodigoInvalido
	}
	if nome == "" {
		return Obra{}, ErrNomeObrigatorio
	}
	for _, o := range registry {
		if o.ObraCodigo == codigo {
			return Obra{}, ErrCodigoDuplicado
		}
	}

	return Obra{
		ObraCodigo:  codigo,
		ObraNome:    nome,
		AnoInicio:   ano,
		ObraDisplay: Display(codigo, nome),
		Estado:      "ativa",
	}, nil
}

// normalizeNNN keeps up to three digits and zero-pads short sequences.
func normalizeNNN(value string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, value)
	if len(digits) > 3 {
		digits = digits[:3]
	}
	if digits == "" {
		return ""
	}
	n, _ := strconv.Atoi(digits)
	return Pad3(n)
}

// Find returns the work with the given code, or nil.
func Find(registry []Obra, codigo string) *Obra {
	for i := range registry {
		if registry[i].ObraCodigo == codigo {
			return &registry[i]
		}
	}
	return nil
}

package caixa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// contestResult is one contest as returned by the results API.
type contestResult struct {
	Concurso *int     `json:"concurso"`
	Numero   *int     `json:"numero"`
	Data     *string  `json:"data"`
	Dezenas  []dezena `json:"dezenas"`
}

// dezena accepts both "07" and 7.
type dezena int

// UnmarshalJSON implements json.Unmarshaler.
func (d *dezena) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("caixa: invalid number %s: %w", b, err)
	}
	*d = dezena(n)
	return nil
}

func (r contestResult) contest() (int, bool) {
	switch {
	case r.Concurso != nil:
		return *r.Concurso, true
	case r.Numero != nil:
		return *r.Numero, true
	}
	return 0, false
}

// decodeList parses a bulk response. Elements that fail to decode are
// counted and skipped.
func decodeList(b []byte) ([]contestResult, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, 0, fmt.Errorf("caixa: decode contest list: %w", err)
	}
	out := make([]contestResult, 0, len(raw))
	var bad int
	for _, item := range raw {
		var r contestResult
		if err := json.Unmarshal(item, &r); err != nil {
			bad++
			continue
		}
		out = append(out, r)
	}
	return out, bad, nil
}

package bling

import (
	"bytes"
	"encoding/json"
)

// emissionResponse is the envelope returned by POST /notasfiscais/xml/
type emissionResponse struct {
	Retorno struct {
		NotasFiscais []struct {
			Nota []struct {
				Numero flexString `json:"numero"`
				Serie  string      `json:"serie"`
			} `json:"nota"`
		} `json:"notasfiscais"`
		// Erros is either a list or an object depending on the endpoint
		Erros json.RawMessage `json:"erros"`
	} `json:"retorno"`
}

func (r *emissionResponse) hasErrors() bool {
	e := bytes.TrimSpace(r.Retorno.Erros)
	return len(e) > 0 && !bytes.Equal(e, []byte("null")) &&
		!bytes.Equal(e, []byte("[]")) && !bytes.Equal(e, []byte("{}"))
}

func (r *emissionResponse) errorDetail() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.Retorno.Erros); err != nil {
		return string(r.Retorno.Erros)
	}
	return buf.String()
}

func (r *emissionResponse) documentNumber() string {
	if len(r.Retorno.NotasFiscais) == 0 || len(r.Retorno.NotasFiscais[0].Nota) == 0 {
		return ""
	}
	return string(r.Retorno.NotasFiscais[0].Nota[0].Numero)
}

// flexString accepts a JSON string or number. Document numbers may carry
// leading zeros, which rules out json.Number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

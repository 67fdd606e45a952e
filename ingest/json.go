// Package ingest converts data from other representations into the value
// model so it can be serialized.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

// FromJSON decodes a single JSON value. Objects keep their member order,
// numbers become float64 and a repeated member name keeps its first
// position with the last value.
func FromJSON(data []byte) (any, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data), jsontext.AllowDuplicateNames(true))
	v, err := readJSON(dec)
	if err != nil {
		return nil, fmt.Errorf("ingest: json: %w", err)
	}
	if _, err := dec.ReadToken(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ingest: json: trailing data at offset %d", dec.InputOffset())
	}
	return v, nil
}

func readJSON(dec *jsontext.Decoder) (any, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	switch tok.Kind() {
	case 'n':
		return nil, nil
	case 't', 'f':
		return tok.Bool(), nil
	case '"':
		return tok.String(), nil
	case '0':
		return tok.Float(), nil
	case '[':
		a := value.NewArray()
		for dec.PeekKind() != ']' {
			el, err := readJSON(dec)
			if err != nil {
				return nil, err
			}
			a.Push(el)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return a, nil
	case '{':
		o := value.NewObject()
		for dec.PeekKind() != '}' {
			name, err := dec.ReadToken()
			if err != nil {
				return nil, err
			}
			if name.Kind() != '"' {
				return nil, fmt.Errorf("unexpected object member name %s", name)
			}
			// The token is only valid until the next read.
			key := name.String()
			v, err := readJSON(dec)
			if err != nil {
				return nil, err
			}
			o.Props.Put(key, v)
		}
		if _, err := dec.ReadToken(); err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("unexpected token %s", tok)
}

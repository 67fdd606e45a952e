package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EmileSonneveld/serialize-to-js/value"
)

// Tags understood on top of the YAML core schema.
const (
	tagMap       = "!map"
	tagSet       = "!set"
	tagRegExp    = "!regexp"
	tagBigInt    = "!bigint"
	tagURL       = "!url"
	tagSymbol    = "!symbol"
	tagError     = "!error"
	tagDate      = "!date"
	tagUndefined = "!undefined"
)

// FromYAML decodes the first document of data. An alias yields the very
// value its anchor produced, so anchored collections become shared values
// and an alias inside its own anchor becomes a cycle.
//
// Mappings become *value.Object unless tagged !map, which is required for
// non-scalar keys. Sequences tagged !set become *value.Set.
func FromYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ingest: yaml: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil // empty input
	}
	b := &yamlBuilder{seen: map[*yaml.Node]any{}}
	v, err := b.build(&doc)
	if err != nil {
		return nil, fmt.Errorf("ingest: yaml: %w", err)
	}
	return v, nil
}

type yamlBuilder struct {
	seen map[*yaml.Node]any
}

func (b *yamlBuilder) build(n *yaml.Node) (any, error) {
	if v, ok := b.seen[n]; ok {
		return v, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return b.build(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("line %d: dangling alias", n.Line)
		}
		return b.build(n.Alias)
	case yaml.SequenceNode:
		return b.sequence(n)
	case yaml.MappingNode:
		return b.mapping(n)
	case yaml.ScalarNode:
		v, err := scalar(n)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		b.seen[n] = v
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unexpected node kind %v", n.Line, n.Kind)
}

func (b *yamlBuilder) sequence(n *yaml.Node) (any, error) {
	switch n.Tag {
	case tagSet:
		s := value.NewSet()
		b.seen[n] = s
		for _, c := range n.Content {
			v, err := b.build(c)
			if err != nil {
				return nil, err
			}
			s.Add(v)
		}
		return s, nil
	case "", "!!seq":
		a := value.NewArray()
		b.seen[n] = a
		for _, c := range n.Content {
			v, err := b.build(c)
			if err != nil {
				return nil, err
			}
			a.Push(v)
		}
		return a, nil
	}
	return nil, fmt.Errorf("line %d: unsupported sequence tag %s", n.Line, n.Tag)
}

func (b *yamlBuilder) mapping(n *yaml.Node) (any, error) {
	switch n.Tag {
	case tagMap:
		m := value.NewMap()
		b.seen[n] = m
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := b.build(n.Content[i])
			if err != nil {
				return nil, err
			}
			v, err := b.build(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(k, v)
		}
		return m, nil
	case "", "!!map":
		o := value.NewObject()
		b.seen[n] = o
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind == yaml.AliasNode && key.Alias != nil {
				key = key.Alias
			}
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key is not a scalar, tag the mapping %s", key.Line, tagMap)
			}
			v, err := b.build(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			o.Props.Put(key.Value, v)
		}
		return o, nil
	}
	return nil, fmt.Errorf("line %d: unsupported mapping tag %s", n.Line, n.Tag)
}

func scalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var v bool
		err := n.Decode(&v)
		return v, err
	case "!!int":
		return yamlInt(n.Value)
	case "!!float":
		var v float64
		err := n.Decode(&v)
		return v, err
	case "!!str", "!!merge":
		return n.Value, nil
	case "!!binary":
		data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, fmt.Errorf("bad binary: %w", err)
		}
		return &value.Buffer{Data: data}, nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, err
		}
		return value.NewDate(t), nil
	case tagUndefined:
		return value.Undef, nil
	case tagRegExp:
		return parseRegExp(n.Value)
	case tagBigInt:
		v, ok := new(big.Int).SetString(n.Value, 0)
		if !ok {
			return nil, fmt.Errorf("bad big integer %q", n.Value)
		}
		return v, nil
	case tagURL:
		return url.Parse(n.Value)
	case tagSymbol:
		return &value.Symbol{Description: n.Value}, nil
	case tagError:
		return &value.Error{Message: n.Value}, nil
	case tagDate:
		if n.Value == "Invalid Date" {
			return &value.Date{Invalid: true}, nil
		}
		t, err := value.ParseISOString(n.Value)
		if err != nil {
			return nil, fmt.Errorf("bad date %q", n.Value)
		}
		return value.NewDate(t), nil
	}
	return nil, fmt.Errorf("unsupported scalar tag %s", n.Tag)
}

// yamlInt reads a core schema integer. Integers beyond int64 become
// *big.Int.
func yamlInt(s string) (any, error) {
	clean := strings.ReplaceAll(s, "_", "")
	n, err := strconv.ParseInt(clean, 0, 64)
	if err == nil {
		return float64(n), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		if b, ok := new(big.Int).SetString(clean, 0); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("bad integer %q", s)
}

// parseRegExp reads "/source/flags".
func parseRegExp(s string) (*value.RegExp, error) {
	end := strings.LastIndexByte(s, '/')
	if !strings.HasPrefix(s, "/") || end < 1 {
		return nil, fmt.Errorf("bad regexp %q, want /source/flags", s)
	}
	return &value.RegExp{Source: s[1:end], Flags: s[end+1:]}, nil
}

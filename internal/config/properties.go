package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Properties is a flat set of dotted keys such as
// "dropHistory.class.colors". It satisfies purge.Lookup.
type Properties struct {
	values map[string]string
}

// NewProperties returns a property set holding values.
func NewProperties(values map[string]string) *Properties {
	p := &Properties{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// LoadProperties reads a YAML file. Nested mappings are joined with dots,
// so these two documents are equivalent:
//
//	dropHistory.class.colors: true
//
//	dropHistory:
//	  class:
//	    colors: true
func LoadProperties(path string) (*Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	p, err := ParseProperties(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseProperties parses YAML property data.
func ParseProperties(data []byte) (*Properties, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}
	p := &Properties{values: make(map[string]string)}
	if len(doc.Content) == 0 {
		return p, nil
	}
	if err := p.flatten("", doc.Content[0]); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Properties) flatten(prefix string, n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := p.flatten(key, n.Content[i+1]); err != nil {
				return err
			}
		}
		return nil
	case yaml.ScalarNode:
		if prefix == "" {
			return fmt.Errorf("line %d: properties must be a mapping", n.Line)
		}
		if _, dup := p.values[prefix]; dup {
			return fmt.Errorf("line %d: duplicate property %q", n.Line, prefix)
		}
		p.values[prefix] = n.Value
		return nil
	case yaml.AliasNode:
		return p.flatten(prefix, n.Alias)
	default:
		return fmt.Errorf("line %d: property %q must be a scalar or mapping", n.Line, prefix)
	}
}

// String returns the raw value of key.
func (p *Properties) String(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Bool returns key parsed as a boolean. Unparseable values count as
// undefined.
func (p *Properties) Bool(key string) (bool, bool) {
	s, ok := p.String(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

// Keys returns every key in sorted order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

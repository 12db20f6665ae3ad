package models

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

//go:embed schema/valve-model-v1.json
var modelSchemaJSON string

const schemaName = "valve-model-v1.json"

// deadEndToken is the textual spelling of an empty slot. TOML has no null,
// so every format accepts it.
const deadEndToken = "-"

// Format identifies a model file encoding.
type Format string

// Supported model file formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the codec from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Codec decodes and encodes model files.
//
// Every document is parsed into a generic tree, normalised to JSON values,
// validated against the embedded schema, and only then converted into a
// valve.Model. Geometry validation happens later in Catalog.Add.
type Codec struct {
	schema *jsonschema.Schema
}

// NewCodec compiles the embedded model schema.
func NewCodec() (*Codec, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaName, strings.NewReader(modelSchemaJSON)); err != nil {
		return nil, fmt.Errorf("adding model schema: %w", err)
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("compiling model schema: %w", err)
	}
	return &Codec{schema: schema}, nil
}

// document mirrors the on-disk layout. Slots stay untyped until the schema
// has accepted them.
type document struct {
	Name        string    `json:"name" yaml:"name" toml:"name"`
	Kind        string    `json:"kind" yaml:"kind" toml:"kind"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Stator      [][]any   `json:"stator" yaml:"stator" toml:"stator"`
	Rotor       [][][]any `json:"rotor" yaml:"rotor" toml:"rotor"`
	Labels      []string  `json:"labels,omitempty" yaml:"labels,omitempty" toml:"labels,omitempty"`
}

// Decode parses, validates and converts one model file.
func (c *Codec) Decode(data []byte, format Format) (valve.Model, error) {
	var tree any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &tree)
	case FormatJSON:
		err = json.Unmarshal(data, &tree)
	case FormatTOML:
		err = toml.Unmarshal(data, &tree)
	default:
		return valve.Model{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return valve.Model{}, fmt.Errorf("%w: parsing %s: %v", ErrInvalidModel, format, err)
	}

	normalised, err := normalise(tree)
	if err != nil {
		return valve.Model{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := c.schema.Validate(normalised); err != nil {
		return valve.Model{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	raw, err := json.Marshal(normalised)
	if err != nil {
		return valve.Model{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return valve.Model{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return doc.model()
}

// normalise round-trips a parsed tree through encoding/json so YAML and
// TOML values take the shapes the schema validator expects.
func normalise(tree any) (any, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d document) model() (valve.Model, error) {
	m := valve.Model{
		Name:        d.Name,
		Kind:        valve.Kind(d.Kind),
		Description: d.Description,
		Labels:      d.Labels,
		Stator:      make([][]valve.Port, len(d.Stator)),
		Rotor:       make([][][]valve.Channel, len(d.Rotor)),
	}

	for ri, ring := range d.Stator {
		m.Stator[ri] = make([]valve.Port, len(ring))
		for si, v := range ring {
			id, ok, err := slotValue(v)
			if err != nil {
				return valve.Model{}, fmt.Errorf("%w: stator ring %d slot %d: %v", ErrInvalidModel, ri, si, err)
			}
			if !ok {
				m.Stator[ri][si] = valve.DeadEnd
				continue
			}
			m.Stator[ri][si] = valve.Port(id)
		}
	}

	for pos, rings := range d.Rotor {
		m.Rotor[pos] = make([][]valve.Channel, len(rings))
		for ri, ring := range rings {
			m.Rotor[pos][ri] = make([]valve.Channel, len(ring))
			for si, v := range ring {
				id, ok, err := slotValue(v)
				if err != nil {
					return valve.Model{}, fmt.Errorf("%w: rotor position %d ring %d slot %d: %v", ErrInvalidModel, pos, ri, si, err)
				}
				if !ok {
					m.Rotor[pos][ri][si] = valve.NoChannel
					continue
				}
				m.Rotor[pos][ri][si] = valve.Channel(id)
			}
		}
	}
	return m, nil
}

// slotValue reads one decoded slot. ok is false for an empty slot.
func slotValue(v any) (id int, ok bool, err error) {
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case string:
		if t == deadEndToken {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("unexpected slot %q", t)
	case float64:
		if t != float64(int(t)) || t < 0 {
			return 0, false, fmt.Errorf("slot %v is not a non-negative integer", t)
		}
		return int(t), true, nil
	default:
		return 0, false, fmt.Errorf("unexpected slot type %T", v)
	}
}

// Encode writes a model in the given format. Empty slots are written as
// null, or as "-" in TOML.
func (c *Codec) Encode(m valve.Model, format Format) ([]byte, error) {
	empty := any(nil)
	if format == FormatTOML {
		empty = deadEndToken
	}

	doc := document{
		Name:        m.Name,
		Kind:        string(m.Kind),
		Description: m.Description,
		Labels:      m.Labels,
		Stator:      make([][]any, len(m.Stator)),
		Rotor:       make([][][]any, len(m.Rotor)),
	}
	for ri, ring := range m.Stator {
		doc.Stator[ri] = make([]any, len(ring))
		for si, p := range ring {
			if p == valve.DeadEnd {
				doc.Stator[ri][si] = empty
				continue
			}
			doc.Stator[ri][si] = int(p)
		}
	}
	for pos, rings := range m.Rotor {
		doc.Rotor[pos] = make([][]any, len(rings))
		for ri, ring := range rings {
			doc.Rotor[pos][ri] = make([]any, len(ring))
			for si, ch := range ring {
				if ch == valve.NoChannel {
					doc.Rotor[pos][ri][si] = empty
					continue
				}
				doc.Rotor[pos][ri][si] = int(ch)
			}
		}
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatTOML:
		return toml.Marshal(doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

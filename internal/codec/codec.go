package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/AmirDavoodi/MPEC/internal/graph"
)

// #region format
// Format selects a triplet record encoding.
type Format string

const (
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatProtoJSON Format = "protojson"
)

// ErrUnknownFormat is returned for an unsupported Format.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat maps a user-supplied name onto a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatJSON, FormatYAML, FormatProtoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// #endregion format

// #region struct
// ToStruct converts rec into a protobuf Struct, the shape a graph persistence
// collaborator receives over the wire.
func ToStruct(rec graph.Record) (*structpb.Struct, error) {
	entities := make([]any, 0, len(rec.Entities))
	for _, e := range rec.Entities {
		entities = append(entities, map[string]any{
			"id":    e.ID,
			"name":  e.Name,
			"label": e.Label,
			"type":  e.Type,
			"start": e.Start,
			"end":   e.End,
		})
	}
	relations := make([]any, 0, len(rec.Relations))
	for _, r := range rec.Relations {
		relations = append(relations, map[string]any{
			"source": r.Source,
			"target": r.Target,
			"type":   r.Type,
			"name":   r.Name,
		})
	}
	st, err := structpb.NewStruct(map[string]any{
		"entities":  entities,
		"relations": relations,
	})
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}
	return st, nil
}

// FromStruct converts a protobuf Struct produced by ToStruct back into a Record.
func FromStruct(st *structpb.Struct) (graph.Record, error) {
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return graph.Record{}, fmt.Errorf("marshal struct: %w", err)
	}
	var rec graph.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return graph.Record{}, fmt.Errorf("decode record: %w", err)
	}
	normalize(&rec)
	return rec, nil
}

// #endregion struct

// #region encode
// Encode serializes rec in format f.
func Encode(rec graph.Record, f Format) ([]byte, error) {
	normalize(&rec)
	switch f {
	case FormatJSON:
		return json.MarshalIndent(rec, "", "  ")
	case FormatYAML:
		return yaml.Marshal(rec)
	case FormatProtoJSON:
		st, err := ToStruct(rec)
		if err != nil {
			return nil, err
		}
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// Decode parses data encoded in format f.
func Decode(data []byte, f Format) (graph.Record, error) {
	var rec graph.Record
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &rec); err != nil {
			return graph.Record{}, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return graph.Record{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatProtoJSON:
		var st structpb.Struct
		if err := protojson.Unmarshal(data, &st); err != nil {
			return graph.Record{}, fmt.Errorf("decode protojson: %w", err)
		}
		return FromStruct(&st)
	default:
		return graph.Record{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	normalize(&rec)
	return rec, nil
}

// normalize replaces nil slices so every encoding emits empty lists.
func normalize(rec *graph.Record) {
	if rec.Entities == nil {
		rec.Entities = []graph.Entity{}
	}
	if rec.Relations == nil {
		rec.Relations = []graph.Relation{}
	}
}

// #endregion encode

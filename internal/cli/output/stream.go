package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Stream writes a sequence of values as they are produced.
type Stream interface {
	Write(v any) error
	Close() error
}

// NewStream returns a JSON lines or YAML documents stream. Table output is
// not a stream: callers aggregate and use PrintTable instead.
func NewStream(w io.Writer, format Format) (Stream, error) {
	switch format {
	case FormatJSON:
		return &jsonStream{enc: json.NewEncoder(w)}, nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &yamlStream{enc: enc}, nil
	default:
		return nil, fmt.Errorf("format %s cannot be streamed", format)
	}
}

type jsonStream struct {
	enc *json.Encoder
}

func (s *jsonStream) Write(v any) error { return s.enc.Encode(v) }

func (s *jsonStream) Close() error { return nil }

type yamlStream struct {
	enc *yaml.Encoder
}

// Write encodes json.Marshaler values through their JSON form so that YAML
// keeps the same field names as the JSON stream.
func (s *yamlStream) Write(v any) error {
	if m, ok := v.(json.Marshaler); ok {
		data, err := m.MarshalJSON()
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		v = doc
	}
	return s.enc.Encode(v)
}

func (s *yamlStream) Close() error { return s.enc.Close() }

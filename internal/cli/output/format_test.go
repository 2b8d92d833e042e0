package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "jsonl alias", input: "jsonl", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "table", FormatTable.String())
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "yaml", FormatYAML.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]any{"cache": "badger"}))

	assert.Contains(t, buf.String(), "\n  \"cache\": \"badger\"")
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	data := struct {
		Type string `yaml:"type"`
		Size int    `yaml:"size"`
	}{Type: "redis", Size: 3}

	require.NoError(t, PrintYAML(&buf, data))
	assert.Equal(t, "type: redis\nsize: 3\n", buf.String())
}

// wire marshals to JSON with field names that differ from its Go fields.
type wire struct {
	ID string
}

func (w wire) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"id": w.ID})
}

func TestJSONStream(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStream(&buf, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, s.Write(wire{ID: "a"}))
	require.NoError(t, s.Write(wire{ID: "b"}))
	require.NoError(t, s.Close())

	assert.Equal(t, "{\"id\":\"a\"}\n{\"id\":\"b\"}\n", buf.String())
}

func TestYAMLStream(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStream(&buf, FormatYAML)
	require.NoError(t, err)

	require.NoError(t, s.Write(wire{ID: "a"}))
	require.NoError(t, s.Write(wire{ID: "b"}))
	require.NoError(t, s.Close())

	dec := yaml.NewDecoder(strings.NewReader(buf.String()))
	var ids []string
	for {
		var doc map[string]string
		if err := dec.Decode(&doc); err != nil {
			break
		}
		ids = append(ids, doc["id"])
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestTableIsNotStreamed(t *testing.T) {
	_, err := NewStream(&bytes.Buffer{}, FormatTable)
	assert.Error(t, err)
}

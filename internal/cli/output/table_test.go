package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Speckle Type", "Objects")

	assert.Equal(t, []string{"Speckle Type", "Objects"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("Objects.Geometry.Mesh", "12")
	table.AddRow("Base", "1")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Objects.Geometry.Mesh", "12"}, rows[0])
	assert.Equal(t, []string{"Base", "1"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Speckle Type", "Objects")
	table.AddRow("Objects.Geometry.Mesh", "12")
	table.AddRow("Base", "1")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "SPECKLE TYPE")
	assert.Contains(t, out, "OBJECTS")
	assert.Contains(t, out, "Objects.Geometry.Mesh")
	assert.Contains(t, out, "12")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{
		{"Cache type", "badger"},
		{"Use worker", "false"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Cache type")
	assert.Contains(t, out, "badger")
	assert.Contains(t, out, "Use worker")
}

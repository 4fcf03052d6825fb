package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"id", "full_name", "score"},
		Rows: []map[string]string{
			{"id": "app-1", "full_name": "Jane Doe", "score": "92"},
			{"id": "app-2", "full_name": "=HYPERLINK(\"x\")", "score": ""},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,full_name,score", lines[0])
	assert.Equal(t, "app-1,Jane Doe,92", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "app-2,\"'=HYPERLINK"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	headers := []string{"a", "b", "c", "d", "e", "f", "g"}
	row := map[string]string{"a": strings.Repeat("long text ", 20)}
	out, err := NewPDFExporter().Render(Dataset{Headers: headers, Rows: []map[string]string{row}}, "Provider applications")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

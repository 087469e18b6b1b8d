package companies

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadText(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		expected []string
	}{
		{
			name:     "csv with header",
			file:     "companies.csv",
			content:  "company_name,country\nAcme Corp,US\n\"Globex, Inc.\",US\n  ,\nInitech,US\n",
			expected: []string{"Acme Corp", "Globex, Inc.", "Initech"},
		},
		{
			name:     "csv without header",
			file:     "companies.csv",
			content:  "Acme Corp\nGlobex\n",
			expected: []string{"Acme Corp", "Globex"},
		},
		{
			name:     "txt",
			file:     "companies.txt",
			content:  "Acme Corp\n\n  Globex  \nInitech\n",
			expected: []string{"Acme Corp", "Globex", "Initech"},
		},
		{
			name:     "jsonl objects and strings",
			file:     "companies.jsonl",
			content:  "{\"name\": \"Acme Corp\"}\n\"Globex\"\n\n{\"name\": \"Initech\", \"country\": \"US\"}\n",
			expected: []string{"Acme Corp", "Globex", "Initech"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := NewLoader(writeFile(t, tt.file, tt.content), zaptest.NewLogger(t)).Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Companies")
	require.NoError(t, err)
	for _, v := range []string{"Company", "Acme Corp", "", "Globex"} {
		sheet.AddRow().AddCell().SetString(v)
	}
	require.NoError(t, f.Save(path))

	names, err := NewLoader(path, zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp", "Globex"}, names)
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.parquet")
	require.NoError(t, parquet.WriteFile(path, []row{{Name: "Acme Corp"}, {Name: " "}, {Name: "Globex"}}))

	names, err := NewLoader(path, zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp", "Globex"}, names)
}

func TestLoadErrors(t *testing.T) {
	_, err := NewLoader(writeFile(t, "companies.pdf", "x"), zaptest.NewLogger(t)).Load()
	assert.ErrorContains(t, err, "unsupported company file format")

	_, err = NewLoader(filepath.Join(t.TempDir(), "missing.csv"), zaptest.NewLogger(t)).Load()
	assert.Error(t, err)

	_, err = NewLoader(writeFile(t, "bad.jsonl", "{\"name\": \n"), zaptest.NewLogger(t)).Load()
	assert.ErrorContains(t, err, "line 1")
}

func TestLoadEmptyFile(t *testing.T) {
	names, err := NewLoader(writeFile(t, "companies.txt", ""), zaptest.NewLogger(t)).Load()
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

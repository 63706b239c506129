package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bepetersn/rp-email-parsing/model"
)

func defaultOptions(path string) Options {
	return Options{
		Path:      path,
		Fields:    []string{"date", "from", "subject"},
		Delimiter: '|',
		Escape:    '\\',
	}
}

func writeRows(t *testing.T, records []model.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := NewWriter(defaultOptions(path))
	require.NoError(t, err)

	require.NoError(t, w.WriteHeader())
	for _, rec := range records {
		require.NoError(t, w.WriteRecord(rec))
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriterHeaderRow(t *testing.T) {
	got := writeRows(t, nil)
	assert.Equal(t, "date|from|subject\n", got)
}

func TestWriterFieldOrder(t *testing.T) {
	got := writeRows(t, []model.Record{{
		"subject": "Hello",
		"date":    "Mon, 1 Jan 2024 00:00:00 +0000",
		"from":    "Jörg <j@example.com>",
	}})
	assert.Equal(t,
		"date|from|subject\n"+
			"Mon, 1 Jan 2024 00:00:00 +0000|Jörg <j@example.com>|Hello\n",
		got)
}

func TestWriterMissingFieldsEmpty(t *testing.T) {
	got := writeRows(t, []model.Record{{
		"from":    "a@example.com",
		"subject": "no date",
	}})
	assert.Equal(t, "date|from|subject\n|a@example.com|no date\n", got)
}

func TestWriterExtraFieldsIgnored(t *testing.T) {
	got := writeRows(t, []model.Record{{
		"subject":    "only this",
		"x-spam":     "ignored",
		"message-id": "<x@y>",
	}})
	assert.Equal(t, "date|from|subject\n||only this\n", got)
}

func TestWriterEscaping(t *testing.T) {
	got := writeRows(t, []model.Record{{
		"subject": `pipes | and \ slashes`,
	}})
	assert.Equal(t, "date|from|subject\n||pipes \\| and \\\\ slashes\n", got)
}

func TestWriterRejectsBadOptions(t *testing.T) {
	dir := t.TempDir()

	_, err := NewWriter(Options{Path: "", Fields: []string{"a"}, Delimiter: '|', Escape: '\\'})
	assert.Error(t, err)

	_, err = NewWriter(Options{Path: filepath.Join(dir, "x"), Fields: nil, Delimiter: '|', Escape: '\\'})
	assert.Error(t, err)

	_, err = NewWriter(Options{Path: filepath.Join(dir, "x"), Fields: []string{"a"}, Delimiter: '|', Escape: '|'})
	assert.Error(t, err)
}

func TestWriterOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale contents\n"), 0o644))

	w, err := NewWriter(defaultOptions(path))
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date|from|subject\n", string(data))
}

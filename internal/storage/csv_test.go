package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/privsynth/pkg/models"
)

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeTestCSV(t, "color,size\nred,small\nblue,large\nred,large\n")

	dataset, codec, err := LoadCSV(path, nil)
	require.NoError(t, err)

	domain := dataset.Domain()
	assert.Equal(t, []string{"color", "size"}, domain.Attributes())
	assert.Equal(t, 2, domain.Cardinality("color"))
	assert.Equal(t, 2, domain.Cardinality("size"))
	assert.Equal(t, 3, dataset.Records())

	// First-appearance order assigns codes.
	assert.Equal(t, []int{0, 1, 0}, dataset.Column("color"))
	assert.Equal(t, []int{0, 1, 1}, dataset.Column("size"))

	label, err := codec.Decode("color", 1)
	require.NoError(t, err)
	assert.Equal(t, "blue", label)
}

func TestLoadCSVErrors(t *testing.T) {
	_, _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.Error(t, err)

	path := writeTestCSV(t, "only,header\n")
	_, _, err = LoadCSV(path, nil)
	assert.Error(t, err, "no data rows")
}

func TestCSVRoundTrip(t *testing.T) {
	original := "color,size\nred,small\nblue,large\nred,large\n"
	path := writeTestCSV(t, original)

	dataset, codec, err := LoadCSV(path, nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(out, dataset, codec))

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, original, string(written))
}

func TestWriteCSVWithoutCodec(t *testing.T) {
	domain, err := models.NewDomain([]string{"a"}, []int{2})
	require.NoError(t, err)
	dataset, err := models.NewDataset(domain, map[string][]int{"a": {1, 0}})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "codes.csv")
	require.NoError(t, WriteCSV(out, dataset, nil))

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n0\n", string(written))
}

func TestCodecDecodeErrors(t *testing.T) {
	codec := Codec{"a": {"x", "y"}}

	_, err := codec.Decode("missing", 0)
	assert.Error(t, err)

	_, err = codec.Decode("a", 5)
	assert.Error(t, err)
}

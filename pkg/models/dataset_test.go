package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	domain, err := NewDomain([]string{"a", "b"}, []int{2, 3})
	require.NoError(t, err)

	dataset, err := NewDataset(domain, map[string][]int{
		"a": {0, 0, 1, 1},
		"b": {0, 2, 1, 2},
	})
	require.NoError(t, err)
	return dataset
}

func TestNewDatasetValidation(t *testing.T) {
	domain, err := NewDomain([]string{"a", "b"}, []int{2, 3})
	require.NoError(t, err)

	_, err = NewDataset(domain, map[string][]int{"a": {0}})
	assert.Error(t, err, "missing column")

	_, err = NewDataset(domain, map[string][]int{"a": {0, 1}, "b": {0}})
	assert.Error(t, err, "ragged columns")

	_, err = NewDataset(domain, map[string][]int{"a": {0, 2}, "b": {0, 1}})
	assert.Error(t, err, "code outside cardinality")
}

func TestDatasetDataVector(t *testing.T) {
	dataset := testDataset(t)
	vec := dataset.DataVector()
	require.Len(t, vec, 6)

	// Rows (a,b): (0,0) (0,2) (1,1) (1,2); index = a*3 + b.
	assert.Equal(t, []float64{1, 0, 1, 0, 1, 1}, vec)
}

func TestDatasetProject(t *testing.T) {
	dataset := testDataset(t)

	projected, err := dataset.Project(Clique{"b"})
	require.NoError(t, err)
	assert.Equal(t, 4, projected.Records())
	assert.Equal(t, []float64{1, 1, 2}, projected.DataVector())

	// Clique order controls flattening order.
	swapped, err := dataset.Project(Clique{"b", "a"})
	require.NoError(t, err)
	vec := swapped.DataVector()
	require.Len(t, vec, 6)
	// index = b*2 + a
	assert.Equal(t, []float64{1, 0, 0, 1, 1, 1}, vec)

	_, err = dataset.Project(Clique{"z"})
	assert.Error(t, err)
}

func TestIdentityMeasurement(t *testing.T) {
	m := NewIdentityMeasurement([]float64{1, 2, 3}, Clique{"a"})
	assert.Equal(t, "identity", m.Operator)
	assert.Equal(t, 1.0, m.Weight)
	assert.True(t, m.Clique.Equal(Clique{"a"}))
	assert.Len(t, m.Values, 3)
}

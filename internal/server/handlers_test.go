package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/privsynth/internal/storage"
	"github.com/inferloop/privsynth/pkg/models"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	domain, err := models.NewDomain([]string{"a", "b"}, []int{2, 3})
	require.NoError(t, err)

	colA := make([]int, 60)
	colB := make([]int, 60)
	for i := range colA {
		colA[i] = i % 2
		colB[i] = i % 3
	}
	dataset, err := models.NewDataset(domain, map[string][]int{"a": colA, "b": colB})
	require.NoError(t, err)

	codec := storage.Codec{
		"a": {"no", "yes"},
		"b": {"low", "mid", "high"},
	}

	srv, err := NewServer(nil, dataset, codec, nil)
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(60), body["records"])
}

func TestDomainEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/domain", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Attributes []string       `json:"attributes"`
		Shape      map[string]int `json:"shape"`
		TotalSize  int            `json:"total_size"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"a", "b"}, body.Attributes)
	assert.Equal(t, 3, body.Shape["b"])
	assert.Equal(t, 6, body.TotalSize)
}

func TestEnginesEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/engines", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Engines []string `json:"engines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Engines, 2)
}

func TestSynthesizeEndpoint(t *testing.T) {
	srv := testServer(t)

	records := 20
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/synthesize", &SynthesizeRequest{
		Epsilon: 1.0,
		Delta:   1e-6,
		Rounds:  2,
		Bounded: true,
		Seed:    42,
		Records: &records,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body SynthesizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, 2, body.Rounds)
	assert.Equal(t, []string{"a", "b"}, body.Columns)
	require.Len(t, body.Rows, 20)

	// Rows come back decoded through the codec.
	assert.Contains(t, []string{"no", "yes"}, body.Rows[0][0])
	assert.Contains(t, []string{"low", "mid", "high"}, body.Rows[0][1])

	require.NotNil(t, body.Budget)
	assert.InDelta(t, body.Budget.Total, body.Budget.Spent, 1e-9)
}

func TestSynthesizeEndpointRejectsBadParams(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/synthesize", &SynthesizeRequest{
		Epsilon: -1.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/synthesize", &SynthesizeRequest{
		Epsilon: 1.0,
		Engine:  "neural",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSynthesizeEndpointCustomWorkload(t *testing.T) {
	srv := testServer(t)

	records := 10
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/synthesize", &SynthesizeRequest{
		Epsilon:  1.0,
		Rounds:   1,
		Bounded:  true,
		Seed:     7,
		Records:  &records,
		Workload: [][]string{{"a"}},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body SynthesizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Rounds)
	require.Len(t, body.Selected, 1)
	assert.True(t, body.Selected[0].Equal(models.Clique{"a"}))
}

func TestNotFoundRoute(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

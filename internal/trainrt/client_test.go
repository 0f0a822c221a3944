package trainrt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

func TestWireTensorRoundTrip(t *testing.T) {
	in := &feature.Tensor{Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}}
	out, err := fromWire(toWire(in))
	require.NoError(t, err)
	assert.Equal(t, in.Shape, out.Shape)
	assert.Equal(t, in.Data, out.Data)
}

func TestFromWireShapeMismatch(t *testing.T) {
	w := toWire(&feature.Tensor{Shape: []int{4}, Data: []float32{1, 2, 3, 4}})
	w.Shape = []int{5}
	_, err := fromWire(w)
	assert.Error(t, err)
}

// fakeRuntime stands in for the external training service.
func fakeRuntime(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/models", func(w http.ResponseWriter, r *http.Request) {
		var spec ModelSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, "nextvlad", spec.Arch)
		json.NewEncoder(w).Encode(map[string]string{"model_id": "m1"})
	})
	mux.HandleFunc("POST /api/models/m1/train", func(w http.ResponseWriter, r *http.Request) {
		var req stepRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Labels)
		json.NewEncoder(w).Encode(map[string]float64{"loss": 0.42})
	})
	mux.HandleFunc("POST /api/models/m1/forward", func(w http.ResponseWriter, r *http.Request) {
		var req stepRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Labels)
		out := toWire(&feature.Tensor{Shape: []int{1, 2}, Data: []float32{0.9, 0.1}})
		json.NewEncoder(w).Encode(map[string]wireTensor{"outputs": out})
	})
	mux.HandleFunc("GET /api/models/m1/state", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("state-dict-bytes"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewClient(&Options{BaseURL: srv.URL})
}

func TestClientLifecycle(t *testing.T) {
	_, client := fakeRuntime(t)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	id, err := client.CreateModel(ctx, ModelSpec{
		Arch: "nextvlad", NumClasses: 2, MaxFrames: 4, FeatureDim: 3,
		LearningRate: 0.001, LRStep: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	features := feature.NewTensor(1, 4, 3)
	mask := feature.NewTensor(1, 4)
	labels := feature.NewTensor(1, 2)

	loss, err := client.TrainStep(ctx, id, features, mask, labels)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, loss, 1e-9)

	probs, err := client.Forward(ctx, id, features, mask)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, probs.Shape)

	state, err := client.ExportState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("state-dict-bytes"), state)
}

func TestClientSurfacesRuntimeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(&Options{BaseURL: srv.URL})
	_, err := client.CreateModel(context.Background(), ModelSpec{Arch: "nextvlad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestHealthFailsWhenRuntimeDown(t *testing.T) {
	client := NewClient(&Options{BaseURL: "http://127.0.0.1:1", Port: 0})
	assert.Error(t, client.Health(context.Background()))
}

// Package fixture serves a synthetic object graph over the Speckle object
// API for integration tests.
package fixture

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// Graph is a root object with Children leaves and one chunked array.
type Graph struct {
	RootID  string
	Objects map[string]map[string]any
}

// NewGraph builds a graph of 1 root, children leaves and chunks data chunks.
func NewGraph(children, chunks int) *Graph {
	g := &Graph{RootID: "root", Objects: make(map[string]map[string]any)}

	closure := make(map[string]any)
	refs := make([]any, 0, children)
	for i := 0; i < children; i++ {
		id := fmt.Sprintf("leaf-%04d", i)
		g.Objects[id] = map[string]any{"id": id, "speckle_type": "Objects.Geometry.Point", "x": float64(i)}
		closure[id] = 1
		refs = append(refs, map[string]any{"referencedId": id, "speckle_type": "reference"})
	}

	chunkRefs := make([]any, 0, chunks)
	for i := 0; i < chunks; i++ {
		id := fmt.Sprintf("chunk-%04d", i)
		g.Objects[id] = map[string]any{
			"id":           id,
			"speckle_type": "Speckle.Core.Models.DataChunk",
			"data":         []any{float64(2 * i), float64(2*i + 1)},
		}
		closure[id] = 1
		chunkRefs = append(chunkRefs, map[string]any{"referencedId": id, "speckle_type": "reference"})
	}

	g.Objects[g.RootID] = map[string]any{
		"id":           g.RootID,
		"speckle_type": "Base",
		"__closure":    closure,
		"elements":     refs,
		"vertices":     chunkRefs,
	}
	return g
}

// Len returns the number of objects a traversal emits. Chunks are merged
// into the root.
func (g *Graph) Len(chunks int) int {
	return len(g.Objects) - chunks
}

// Server is an httptest server for a Graph.
type Server struct {
	*httptest.Server

	// Batches counts served batch requests.
	Batches atomic.Int64

	// Offline makes every request fail with 503.
	Offline atomic.Bool
}

// Serve starts a server for g, closed with the test.
func Serve(t *testing.T, g *Graph) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Offline.Load() {
			http.Error(w, "offline", http.StatusServiceUnavailable)
			return
		}
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/single"):
			_ = json.NewEncoder(w).Encode(g.Objects[g.RootID])
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/getobjects/"):
			s.Batches.Add(1)
			serveBatch(w, r, g)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func serveBatch(w http.ResponseWriter, r *http.Request, g *Graph) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		Objects string `json:"objects"`
	}
	var ids []string
	if err := json.Unmarshal(body, &req); err != nil || json.Unmarshal([]byte(req.Objects), &ids) != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	for _, id := range ids {
		obj, ok := g.Objects[id]
		if !ok {
			continue
		}
		data, _ := json.Marshal(obj)
		_, _ = fmt.Fprintf(w, "%s\t%s\n", id, data)
	}
}

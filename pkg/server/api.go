package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/vdiff/pkg/scenario"
	"github.com/vango-dev/vdiff/pkg/snapshot"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// ReconcileRequest is the body of POST /api/reconcile. Both trees are in
// scenario notation.
type ReconcileRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ReconcileResponse lists the patches that turn Old into New once Old is
// mounted under the root.
type ReconcileResponse struct {
	Patches  []PatchJSON `json:"patches"`
	Stats    StatsJSON   `json:"stats"`
	Shape    string      `json:"shape"`
	Duration string      `json:"duration"`
}

// PatchJSON is the JSON form of a patch.
type PatchJSON struct {
	Op       string    `json:"op"`
	HID      string    `json:"hid"`
	ParentID string    `json:"parent,omitempty"`
	Before   string    `json:"before,omitempty"`
	Key      string    `json:"key,omitempty"`
	Value    string    `json:"value,omitempty"`
	Node     *NodeJSON `json:"node,omitempty"`
}

// NodeJSON is the payload of a CreateNode patch.
type NodeJSON struct {
	Kind  string            `json:"kind"`
	Tag   string            `json:"tag,omitempty"`
	Key   string            `json:"key,omitempty"`
	Text  string            `json:"text,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// StatsJSON is the JSON form of vdom.Stats.
type StatsJSON struct {
	Materialized int `json:"materialized"`
	Inserted     int `json:"inserted"`
	Moved        int `json:"moved"`
	Removed      int `json:"removed"`
	Updated      int `json:"updated"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Line  int    `json:"line,omitempty"`
	Col   int    `json:"col,omitempty"`
}

// SnapshotResponse is the body of GET /api/snapshots/{hash}.
type SnapshotResponse struct {
	Hash      string    `json:"hash"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Taken     time.Time `json:"taken"`
	Tree      string    `json:"tree"`
}

// NewStatsJSON converts s.
func NewStatsJSON(s vdom.Stats) StatsJSON {
	return StatsJSON(s)
}

// NewPatchJSON converts p.
func NewPatchJSON(p vdom.Patch) PatchJSON {
	out := PatchJSON{
		Op:       p.Op.String(),
		HID:      p.HID,
		ParentID: p.ParentID,
		Before:   p.Before,
		Key:      p.Key,
		Value:    p.Value,
	}
	if p.Node != nil {
		out.Node = &NodeJSON{
			Kind:  p.Node.Kind.String(),
			Tag:   p.Node.Tag,
			Key:   p.Node.Key,
			Text:  p.Node.Text,
			Attrs: vdom.StringAttrs(p.Node),
		}
	}
	return out
}

// ReconcileNotation mounts old under the root and reconciles it into new,
// returning the patches of the second pass.
func ReconcileNotation(oldSrc, newSrc string) (*ReconcileResponse, error) {
	prev, err := scenario.Parse(oldSrc)
	if err != nil {
		return nil, err
	}
	next, err := scenario.Parse(newSrc)
	if err != nil {
		return nil, err
	}

	rec := vdom.NewRecorder(nil)
	if err := vdom.Reconcile(rec, vdom.RootHID, nil, prev); err != nil {
		return nil, err
	}
	rec.Reset()

	counter := vdom.NewCounter(rec)
	start := time.Now()
	if err := vdom.Reconcile(counter, vdom.RootHID, prev, next); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	patches := rec.Patches()
	resp := &ReconcileResponse{
		Patches:  make([]PatchJSON, len(patches)),
		Stats:    NewStatsJSON(counter.Stats),
		Shape:    scenario.Format(next),
		Duration: elapsed.String(),
	}
	for i, p := range patches {
		resp.Patches[i] = NewPatchJSON(p)
	}
	return resp, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	start := time.Now()
	resp, err := ReconcileNotation(req.Old, req.New)
	s.metrics.ObservePass(time.Since(start), err)
	if err != nil {
		var pe *scenario.ParseError
		if errors.As(err, &pe) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: pe.Msg, Line: pe.Line, Col: pe.Col})
			return
		}
		s.logger.Error("reconcile failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "snapshots are disabled"})
		return
	}
	hash := chi.URLParam(r, "hash")
	if !snapshot.ValidHash(hash) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: snapshot.ErrBadHash.Error()})
		return
	}

	snap, err := snapshot.Load(r.Context(), s.snapshots, hash)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("snapshot load failed", "hash", hash, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	var tree []*vdom.VNode
	if snap.Tree != nil {
		tree = []*vdom.VNode{snap.Tree.ToVNode()}
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{
		Hash:      hash,
		SessionID: snap.SessionID,
		Seq:       snap.Seq,
		Taken:     snap.Taken,
		Tree:      scenario.Format(tree),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

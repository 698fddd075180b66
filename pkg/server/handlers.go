package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nickadesina/soc-cli/pkg/graph"
	"github.com/nickadesina/soc-cli/pkg/inference"
	"github.com/nickadesina/soc-cli/pkg/pathfind"
)

const maxRequestBody = 1 << 20 // 1MB

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeGraphError maps domain errors onto HTTP status codes.
func (s *Server) writeGraphError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, graph.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, graph.ErrValidation),
		errors.Is(err, graph.ErrSelfLoop),
		errors.Is(err, graph.ErrInvalidDelta):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// persist pushes the current graph to the configured persister, if any.
// Persistence failures are reported, not swallowed: the write already
// happened in memory, so the client gets a 500 and the operator a log line.
// Called after every successful mutation, which also makes it the choke
// point for dropping cached path results.
func (s *Server) persist(w http.ResponseWriter) bool {
	s.pathCache.Invalidate()
	if s.persister == nil {
		return true
	}
	if err := s.persister.SaveGraph(s.graph); err != nil {
		s.logger.Error("persist graph", "err", err)
		s.writeError(w, http.StatusInternalServerError, "failed to persist graph")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type graphDumpResponse struct {
	People []*graph.PersonRecord `json:"people"`
	Edges  []graph.DirectedEdge  `json:"edges"`
}

func (s *Server) handleGraphDump(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, graphDumpResponse{
		People: s.graph.People(),
		Edges:  s.graph.Edges(),
	})
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := graph.Criteria{
		Name:      q.Get("name"),
		Location:  q.Get("location"),
		School:    q.Get("school"),
		Employer:  q.Get("employer"),
		Ecosystem: q.Get("ecosystem"),
		Society:   q.Get("society"),
		Platform:  q.Get("platform"),
	}
	if raw := q.Get("tier"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "tier must be an integer")
			return
		}
		criteria.Tier = tier
	}
	s.writeJSON(w, http.StatusOK, s.graph.FilterPeople(criteria))
}

type upsertPersonResponse struct {
	Person    *graph.PersonRecord `json:"person"`
	AutoEdges map[string]int      `json:"auto_edges,omitempty"`
}

func (s *Server) handleUpsertPerson(w http.ResponseWriter, r *http.Request) {
	var record graph.PersonRecord
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&record); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	overwrite := r.URL.Query().Get("overwrite") == "true"
	topK := s.config.AutoTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || (n < 0 && n != inference.TopKAll) {
			s.writeError(w, http.StatusBadRequest, "top_k must be a non-negative integer or -1")
			return
		}
		topK = n
	}

	existed := s.graph.HasPerson(record.ID)

	if !s.config.AutoConnect {
		if err := s.graph.AddPerson(&record, overwrite); err != nil {
			s.writeGraphError(w, err)
			return
		}
		if !s.persist(w) {
			return
		}
		status := http.StatusCreated
		if existed {
			status = http.StatusOK
		}
		s.writeJSON(w, status, upsertPersonResponse{Person: &record})
		return
	}

	autoEdges, err := inference.UpsertWithAutoEdges(s.graph, &record, overwrite, topK, s.now())
	if err != nil {
		s.writeGraphError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	s.writeJSON(w, status, upsertPersonResponse{Person: &record, AutoEdges: autoEdges})
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := s.graph.GetPerson(r.PathValue("id"))
	if err != nil {
		s.writeGraphError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, person)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := s.graph.RemovePerson(r.PathValue("id")); err != nil {
		s.writeGraphError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		s.writeError(w, http.StatusBadRequest, "source and target query parameters are required")
		return
	}
	key := s.pathCache.Key(source, target)
	if cached, ok := s.pathCache.Get(key); ok {
		s.writeJSON(w, http.StatusOK, cached)
		return
	}
	result, err := pathfind.ShortestPath(s.graph, source, target)
	if errors.Is(err, pathfind.ErrNoPath) {
		s.writeError(w, http.StatusNotFound, "no path between "+source+" and "+target)
		return
	}
	if err != nil {
		s.writeGraphError(w, err)
		return
	}
	s.pathCache.Put(key, result)
	s.writeJSON(w, http.StatusOK, result)
}

type connectionRequest struct {
	Source      string         `json:"source"`
	Target      string         `json:"target"`
	WeightDelta int            `json:"weight_delta"`
	Contexts    map[string]int `json:"contexts,omitempty"`
	Symmetric   *bool          `json:"symmetric,omitempty"`
}

// connectionWritesGone answers the manual edge endpoints when they are
// disabled in favor of inference-driven edges.
func (s *Server) connectionWritesGone(w http.ResponseWriter) bool {
	if s.config.ConnectionWritesEnabled {
		return false
	}
	s.writeError(w, http.StatusGone, "manual connection writes are disabled; upsert people via POST /api/people instead")
	return true
}

func (s *Server) handleAddConnection(w http.ResponseWriter, r *http.Request) {
	if s.connectionWritesGone(w) {
		return
	}
	var req connectionRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	symmetric := true
	if req.Symmetric != nil {
		symmetric = *req.Symmetric
	}
	if err := s.graph.AddConnection(req.Source, req.Target, req.WeightDelta, req.Contexts, symmetric); err != nil {
		s.writeGraphError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	weight, exists := s.graph.EdgeWeight(req.Source, req.Target)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"source": req.Source,
		"target": req.Target,
		"weight": weight,
		"exists": exists,
	})
}

func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	if s.connectionWritesGone(w) {
		return
	}
	var req connectionRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	symmetric := true
	if req.Symmetric != nil {
		symmetric = *req.Symmetric
	}
	if err := s.graph.RemoveConnection(req.Source, req.Target, symmetric); err != nil {
		s.writeGraphError(w, err)
		return
	}
	if !s.persist(w) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"net/http"

	"github.com/hoplite-ai/hoplite/assistant"
	"github.com/hoplite-ai/hoplite/types"
)

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	TenantID string            `json:"tenant_id"`
	Question string            `json:"question"`
	Options  assistant.Options `json:"options"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSONBody(w, r, &req, s.logger) {
		return
	}

	answer, err := s.engine.PlanAndAnswer(r.Context(), req.Question, req.TenantID, req.Options)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, answer)
}

// AddChunksRequest is the body of POST /v1/documents/chunks.
type AddChunksRequest struct {
	TenantID string         `json:"tenant_id"`
	Chunks   []*types.Chunk `json:"chunks"`
}

// AddChunksResponse reports how many chunks were indexed.
type AddChunksResponse struct {
	TenantID string `json:"tenant_id"`
	Indexed  int    `json:"indexed"`
}

func (s *Server) handleAddChunks(w http.ResponseWriter, r *http.Request) {
	var req AddChunksRequest
	if !decodeJSONBody(w, r, &req, s.logger) {
		return
	}

	if err := s.engine.AddDocumentChunks(r.Context(), req.TenantID, req.Chunks); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, AddChunksResponse{TenantID: req.TenantID, Indexed: len(req.Chunks)})
}

// DeleteDocumentResponse reports how many chunks a deletion removed.
type DeleteDocumentResponse struct {
	TenantID string `json:"tenant_id"`
	DocID    string `json:"doc_id"`
	Removed  int    `json:"removed"`
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	docID := r.PathValue("doc")

	removed, err := s.engine.DeleteDocument(r.Context(), tenantID, docID)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, DeleteDocumentResponse{TenantID: tenantID, DocID: docID, Removed: removed})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants := s.engine.ListTenants()
	if tenants == nil {
		tenants = []string{}
	}
	writeSuccess(w, r, map[string]any{"tenants": tenants})
}

func (s *Server) handleTenantStats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, s.engine.TenantStats(r.PathValue("tenant")))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

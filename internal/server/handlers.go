package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/internal/models"
	"github.com/quarrylabs/quarry/internal/retriever"
)

// maxUploadBytes caps document uploads at 100 MiB.
const maxUploadBytes = 100 << 20

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query models.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("text", query.Text), zap.Int("top_k", query.TopK))
	response, err := s.pipeline.Query(r.Context(), &query)
	if err != nil {
		if errors.Is(err, retriever.ErrNoIndexes) {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type ingestPathRequest struct {
	Path string `json:"path"`
}

// handleIngestDocument accepts either a multipart upload (field "file") or a
// JSON body {"path": "..."} naming a file on the server's filesystem.
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var (
		docID  string
		chunks int
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid multipart upload")
			return
		}
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			s.respondError(w, http.StatusBadRequest, "missing 'file' field")
			return
		}
		content, rerr := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		file.Close()
		if rerr != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		s.logger.Debug("ingest upload", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
		docID, chunks, err = s.pipeline.IngestBytes(r.Context(), header.Filename, content)
	} else {
		var req ingestPathRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil || req.Path == "" {
			s.respondError(w, http.StatusBadRequest, "path is required")
			return
		}
		s.logger.Debug("ingest path", zap.String("path", req.Path))
		docID, chunks, err = s.pipeline.IngestFile(r.Context(), req.Path)
	}
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"document_id": docID,
		"chunks":      chunks,
		"status":      "ingested",
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.pipeline.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents": status.Documents,
		"chunks":    status.Chunks,
		"indexes":   status.Indexes,
	}
	if len(status.States) > 0 {
		resp["ingestion_states"] = status.States
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

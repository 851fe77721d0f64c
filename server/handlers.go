package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/openhouse/portalcache/diagnostic"
	"github.com/openhouse/portalcache/documents"
	e "github.com/openhouse/portalcache/errors"
	"github.com/openhouse/portalcache/store"
)

// DocsListHandler serves the documents a unit can see.
func (s *Server) DocsListHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unitUID := q.Get("unitUid")
	if unitUID == "" {
		respondWithErrorMessage(w, r, "Unit UID is required", http.StatusBadRequest)
		return
	}

	unit, err := s.authorise(r.Context(), unitUID, q.Get("token"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	recs, err := s.developmentDocuments(r.Context(), unit.DevelopmentID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	docs := documents.ForUnit(recs, unit.HouseTypeCode)
	s.sanitise(docs)

	output, err := json.Marshal(StandardResponse{
		Context: q.Get("context"),
		Status:  http.StatusOK,
		Data:    documents.ListResponse{Documents: docs},
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(output))
	w.Header().Set("ETag", etag)
	if matchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, r, output, http.StatusOK)
}

func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		if c == etag || c == "*" || strings.TrimPrefix(c, "W/") == etag {
			return true
		}
	}
	return false
}

// DownloadHandler returns a link to one document of the unit.
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unitUID, docID := q.Get("unitUid"), q.Get("docId")
	if unitUID == "" || docID == "" {
		respondWithError(w, r, e.New(unitUID, "server.DownloadHandler", e.MissingParameter, "unitUid and docId are required"))
		return
	}

	unit, err := s.authorise(r.Context(), unitUID, q.Get("token"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	rec, err := s.store.Document(r.Context(), unit.DevelopmentID, docID)
	if err == nil && (rec.IsSuperseded || !documents.VisibleTo(rec, unit.HouseTypeCode)) {
		err = e.New(unitUID, "server.DownloadHandler", e.DocumentNotFound, "document not found")
	}
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	link, err := s.links.URL(r.Context(), rec.FileURL, rec.Title)
	if err != nil {
		respondWithError(w, r, e.New(unitUID, "server.DownloadHandler", e.StorageFailure, err.Error()))
		return
	}
	respondWithData(w, r, documents.DownloadResponse{URL: link})
}

// FlowsHandler serves the diagnostic flow catalogue.
func (s *Server) FlowsHandler(w http.ResponseWriter, r *http.Request) {
	respondWithData(w, r, s.catalog)
}

// CompleteHandler records a finished diagnostic flow.
func (s *Server) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	const fn = "server.CompleteHandler"

	var rep diagnostic.Report
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&rep); err != nil {
		respondWithError(w, r, e.New("", fn, e.InvalidContent, "the report could not be read"))
		return
	}
	if rep.FlowID == "" {
		respondWithError(w, r, e.New(rep.UnitUID, fn, e.MissingParameter, "diagnostic_flow_id is required"))
		return
	}
	if rep.Outcome != diagnostic.Resolved && rep.Outcome != diagnostic.Escalated {
		respondWithError(w, r, e.New(rep.UnitUID, fn, e.InvalidContent, "outcome must be resolved or escalated"))
		return
	}
	if _, err := s.catalog.Flow(rep.FlowID); err != nil {
		respondWithError(w, r, err)
		return
	}

	id, err := s.store.RecordCompletion(r.Context(), store.Completion{
		FlowID:      rep.FlowID,
		UnitUID:     rep.UnitUID,
		Outcome:     rep.Outcome,
		Steps:       rep.Steps,
		CompletedAt: s.now(),
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respond(w, r, map[string]string{"id": id}, http.StatusCreated, nil)
}

package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/model"
	"github.com/sealshare/sealshare-server/internal/service"
)

type RecordHandler struct {
	records *service.Record
	logger  *logger.Logger
}

func NewRecordHandler(records *service.Record, logger *logger.Logger) *RecordHandler {
	return &RecordHandler{records: records, logger: logger}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req createRecordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := h.records.CreateRecord(r.Context(), userID, model.CreateRecordParams{
		Credentials:    req.Credentials,
		Preview:        req.Preview,
		PreviewKey:     req.PreviewKey,
		CredentialsKey: req.CredentialsKey,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": record.ID})
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	view, err := h.records.GetRecord(r.Context(), userID, recordID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(view))
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	views, err := h.records.ListRecords(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]recordResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toRecordResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	if err := h.records.DeleteRecord(r.Context(), userID, recordID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	recordID, ok := pathID(w, r, "recordID")
	if !ok {
		return
	}

	var req rotationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.records.RotateRecordKey(r.Context(), userID, recordID, req.toModel()); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

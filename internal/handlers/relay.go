package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"product-relay/internal/middleware"
	"product-relay/internal/models"
	"product-relay/internal/services"
)

const (
	msgInvalidBody     = "Invalid request body"
	msgInvalidRequest  = "Invalid request"
	msgChatFailed      = "OpenAI API error"
	msgInsertFailed    = "Database insertion error"
	msgInsertSucceeded = "Data inserted successfully"
)

type chatCompleter interface {
	Complete(ctx context.Context, req models.ChatRequest) (json.RawMessage, error)
}

// RelayHandler serves the two extension routes.
type RelayHandler struct {
	chat    chatCompleter
	catalog services.CatalogWriter
	logger  *zap.Logger
}

func NewRelayHandler(chat chatCompleter, catalog services.CatalogWriter, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		chat:    chat,
		catalog: catalog,
		logger:  logger,
	}
}

// ChatCompletion forwards the messages and returns the provider's completion
// object as received.
func (h *RelayHandler) ChatCompletion(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp(msgInvalidBody))
		return
	}

	body, err := h.chat.Complete(r.Context(), req)
	if err != nil {
		h.handleError(w, r, err, msgChatFailed)
		return
	}

	writeRaw(w, http.StatusOK, body)
}

// Insert hands both payloads to the catalog writer. Any JSON object or array
// is accepted; a body that is not an object carries no payloads.
func (h *RelayHandler) Insert(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp(msgInvalidBody))
		return
	}

	var req models.InsertRequest
	switch bytes.TrimSpace(body)[0] {
	case '{':
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp(msgInvalidBody))
			return
		}
	case '[':
	default:
		writeJSON(w, http.StatusBadRequest, errorResp(msgInvalidBody))
		return
	}

	if err := h.catalog.Write(r.Context(), req.ProductData, req.AmazonData); err != nil {
		h.handleError(w, r, err, msgInsertFailed)
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: msgInsertSucceeded})
}

// handleError maps tagged service errors to status codes. failureMsg is the
// route's fixed message for anything that is not the caller's fault; the
// underlying error only reaches the log.
func (h *RelayHandler) handleError(w http.ResponseWriter, r *http.Request, err error, failureMsg string) {
	requestID := middleware.GetRequestID(r.Context())

	var validationErr *services.ValidationError
	var downstreamErr *services.DownstreamError
	switch {
	case errors.As(err, &validationErr):
		h.logger.Debug("rejected request",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Any("fields", validationErr.Fields),
		)
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(msgInvalidRequest, validationErr.Fields))
	case errors.As(err, &downstreamErr):
		h.logger.Error(failureMsg,
			zap.String("provider", downstreamErr.Provider),
			zap.String("request_id", requestID),
			zap.Error(downstreamErr.Err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResp(failureMsg))
	case errors.Is(err, context.Canceled):
		h.logger.Info("client went away", zap.String("path", r.URL.Path), zap.String("request_id", requestID))
		writeJSON(w, http.StatusInternalServerError, errorResp(failureMsg))
	default:
		h.logger.Error(failureMsg,
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResp(failureMsg))
	}
}

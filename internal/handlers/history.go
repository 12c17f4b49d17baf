package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"fortune/internal/store"
)

const historyMethods = "GET, OPTIONS"

type RecordReader interface {
	Get(ctx context.Context, id string) (*store.Record, error)
	ListByUser(ctx context.Context, userID string) ([]store.Record, error)
}

// HistoryHandler serves GET /fate and GET /fate/{id} for the signed-in user.
type HistoryHandler struct {
	records RecordReader
	log     *zap.Logger
}

func NewHistoryHandler(records RecordReader, log *zap.Logger) *HistoryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryHandler{records: records, log: log}
}

func (h *HistoryHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch method(req) {
	case http.MethodOptions:
		return preflight(historyMethods)
	case http.MethodGet:
	default:
		return errResp(http.StatusMethodNotAllowed, historyMethods, "method not allowed")
	}

	lang := requestLanguage(req.QueryStringParameters, header(req, "accept-language"))
	userID := authorizedID(req)
	if userID == "" {
		return errResp(http.StatusUnauthorized, historyMethods, message(lang, msgAuthRequired))
	}

	if id := strings.TrimSpace(req.PathParameters["id"]); id != "" {
		rec, err := h.records.Get(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return errResp(http.StatusNotFound, historyMethods, message(lang, msgNotFound))
		case err != nil:
			h.log.Error("get record failed", zap.String("id", id), zap.Error(err))
			return errResp(http.StatusInternalServerError, historyMethods, message(lang, msgServerError))
		case rec.UserID != userID:
			return errResp(http.StatusForbidden, historyMethods, message(lang, msgForbidden))
		}
		return jsonResp(http.StatusOK, historyMethods, map[string]any{"success": true, "data": rec})
	}

	recs, err := h.records.ListByUser(ctx, userID)
	if err != nil {
		h.log.Error("list records failed", zap.String("user", userID), zap.Error(err))
		return errResp(http.StatusInternalServerError, historyMethods, message(lang, msgServerError))
	}
	return jsonResp(http.StatusOK, historyMethods, map[string]any{"success": true, "data": recs})
}

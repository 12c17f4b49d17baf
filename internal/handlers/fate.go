package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"fortune/internal/fate"
	"fortune/internal/llm"
	"fortune/internal/store"
)

const fateMethods = "POST, OPTIONS"

type Calculator interface {
	Calculate(ctx context.Context, req fate.Request) (*fate.Outcome, error)
}

type RecordSaver interface {
	Save(ctx context.Context, rec store.Record)
}

// FateHandler serves POST /fate. The reading is returned before its record is
// confirmed written; see store.Writer.
type FateHandler struct {
	calc  Calculator
	saver RecordSaver
	log   *zap.Logger
	now   func() time.Time
}

func NewFateHandler(calc Calculator, saver RecordSaver, log *zap.Logger) *FateHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FateHandler{calc: calc, saver: saver, log: log, now: time.Now}
}

type fateResponse struct {
	Success bool        `json:"success"`
	Data    fate.Result `json:"data"`
	ID      string      `json:"id"`
}

func (h *FateHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch method(req) {
	case http.MethodOptions:
		return preflight(fateMethods)
	case http.MethodPost:
	default:
		return errResp(http.StatusMethodNotAllowed, fateMethods, "method not allowed")
	}

	var body fate.Request
	if err := decodeBody(req, &body); err != nil {
		lang := requestLanguage(req.QueryStringParameters, header(req, "accept-language"))
		return errResp(http.StatusBadRequest, fateMethods, message(lang, msgInvalidBody))
	}
	lang := fate.ParseLanguage(body.Language)

	out, err := h.calc.Calculate(ctx, body)
	if err != nil {
		return h.fail(lang, body.Category, err)
	}

	rec := store.NewRecord(callerID(req), body, out, h.now())
	h.saver.Save(ctx, rec)

	return jsonResp(http.StatusOK, fateMethods, fateResponse{Success: true, Data: out.Result, ID: rec.ID})
}

func (h *FateHandler) fail(lang fate.Language, category string, err error) (events.APIGatewayV2HTTPResponse, error) {
	var (
		verr *fate.ValidationError
		terr *llm.TimeoutError
	)
	switch {
	case errors.As(err, &verr):
		return errResp(http.StatusBadRequest, fateMethods, verr.Error())
	case errors.As(err, &terr):
		h.log.Warn("fortune generation timed out", zap.String("category", category), zap.Error(err))
		return errResp(http.StatusGatewayTimeout, fateMethods, message(lang, msgGenerationTimeout))
	}

	fields := []zap.Field{zap.String("category", category), zap.Error(err)}
	var (
		cerr *llm.ConfigurationError
		uerr *llm.UpstreamError
		eerr *llm.EmptyResponseError
	)
	switch {
	case errors.As(err, &cerr):
		fields = append(fields, zap.String("kind", "configuration"))
	case errors.As(err, &uerr):
		fields = append(fields, zap.String("kind", "upstream"), zap.Int("status", uerr.Status))
	case errors.As(err, &eerr):
		fields = append(fields, zap.String("kind", "empty_response"))
	}
	h.log.Error("fortune generation failed", fields...)
	return errResp(http.StatusInternalServerError, fateMethods, message(lang, msgGenerationFailed))
}

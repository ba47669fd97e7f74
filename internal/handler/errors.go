package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/florist-bot/internal/domain/browse"
	"github.com/xenking/florist-bot/internal/domain/product"
	"github.com/xenking/florist-bot/internal/domain/recommend"
)

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

// statusOf maps domain errors to HTTP status codes and client messages.
func statusOf(err error) (int, string) {
	var (
		badReq   *badRequestError
		rangeErr *browse.InvalidRangeError
		limitErr *recommend.InvalidLimitError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.As(err, &rangeErr), errors.As(err, &limitErr):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, product.ErrCatalogUnavailable), errors.Is(err, product.ErrMissingCatalog):
		return http.StatusServiceUnavailable, "catalog is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusOf(err)
	lg := zctx.From(r.Context())
	if code >= http.StatusInternalServerError {
		lg.Warn("Request failed", zap.Error(err), zap.Int("status", code))
	} else {
		lg.Debug("Request rejected", zap.Error(err), zap.Int("status", code))
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, code, e.Bytes())
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

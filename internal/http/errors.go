package httpapi

import (
	"errors"
	"net/http"

	"wisefido-physio/internal/provider"
	"wisefido-physio/internal/session"
)

// statusFor 错误到 HTTP 状态码的映射
func statusFor(err error) int {
	var (
		netErr    *provider.NetworkError
		statusErr *provider.HTTPStatusError
		badErr    *provider.MalformedPayloadError
	)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionExists):
		return http.StatusConflict
	case errors.As(err, &netErr), errors.As(err, &statusErr), errors.As(err, &badErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

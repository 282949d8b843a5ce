package httpadapter

import (
	"net/http"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrQuery):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoData):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConnectivity):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

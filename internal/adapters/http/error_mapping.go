package httpadapter

import (
	"net/http"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrRequirementNotFound),
		domain.IsKind(err, domain.ErrResponseNotFound),
		domain.IsKind(err, domain.ErrCommentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidState),
		domain.IsKind(err, domain.ErrVersionConflict),
		domain.IsKind(err, domain.ErrStaleUpdate):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup/internal/geo"
	"pickup/internal/guardian"
	"pickup/internal/pickup"
	"pickup/internal/qrtoken"
	"pickup/internal/roster"
)

// respondError maps domain errors to HTTP statuses in one place so handlers
// never reinterpret them individually.
func respondError(c *gin.Context, err error) {
	var verr *pickup.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, geo.ErrInvalidCoordinate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, qrtoken.ErrMalformedToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "qr code not recognized"})
	case errors.Is(err, qrtoken.ErrExpiredToken):
		c.JSON(http.StatusGone, gin.H{"error": "qr code expired"})
	case errors.Is(err, pickup.ErrUnauthorizedRequester), errors.Is(err, pickup.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, pickup.ErrNotFound), errors.Is(err, guardian.ErrLinkNotFound), errors.Is(err, roster.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pickup.ErrInvalidTransition),
		errors.Is(err, pickup.ErrQuorumNotMet),
		errors.Is(err, pickup.ErrTokenAlreadyUsed),
		errors.Is(err, pickup.ErrAmbiguousRequest),
		errors.Is(err, guardian.ErrDuplicateLink),
		errors.Is(err, guardian.ErrAuthorizedLimit),
		errors.Is(err, roster.ErrDuplicateCode):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pickup.ErrOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kigaligo/internal/geo"
	"kigaligo/internal/repository"
	"kigaligo/internal/services"
)

// Error kinds for failures that only exist at the HTTP boundary.
const (
	kindNotFound = "not_found"
	kindConflict = "conflict"
)

const genericFailure = "the request could not be completed, please retry"

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps a service error onto a status code and body. Validation
// messages go back to the client verbatim; server-side failures are logged
// and answered with a generic message.
//
// Go Learning Note — errors.Is / errors.As:
// Services wrap errors with fmt.Errorf("...: %w", err). errors.Is walks that
// chain looking for a sentinel value and errors.As looks for a type, so the
// handler still recognises ErrVehicleNotFound three layers down.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var verr *geo.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: services.KindValidation, Message: verr.Error()})
	case errors.Is(err, repository.ErrVehicleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: kindNotFound, Message: "vehicle not found"})
	case errors.Is(err, repository.ErrVehicleExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: kindConflict, Message: "vehicle already exists"})
	default:
		kind := services.ErrorKind(err)
		log.Error().Err(err).
			Str("kind", kind).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("query", c.Request.URL.RawQuery).
			Msg("Request failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: kind, Message: genericFailure})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: services.KindValidation, Message: message})
}

package server

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/extract"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorPayload(err error) errorBody {
	body := errorBody{Code: "INTERNAL", Message: "internal error"}
	var app *common.AppError
	switch {
	case errors.Is(err, common.ErrValidation):
		body.Code, body.Message = "VALIDATION_FAILED", common.FirstMessage(err)
	case errors.As(err, &app):
		body.Code, body.Message = app.Code, app.Message
	case extract.IsStatusError(err):
		body.Code, body.Message = "EXTRACTION_FAILED", "the extraction service returned an error"
	case extract.IsMalformed(err):
		body.Code, body.Message = "EXTRACTION_MALFORMED", "the extraction service returned an unusable response"
	case errors.Is(err, common.ErrNotFound):
		body.Code, body.Message = "NOT_FOUND", "not found"
	}
	return body
}

func writeError(c *gin.Context, err error) {
	c.JSON(common.HTTPStatus(err), gin.H{"error": errorPayload(err)})
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(common.HTTPStatus(err), gin.H{"error": errorPayload(err)})
}

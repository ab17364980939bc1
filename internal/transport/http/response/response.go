package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeValidation           = 40001
	CodeUnauthorized         = 40100
	CodeInvalidIDToken       = 40101
	CodeTokenRevoked         = 40102
	CodeForbidden            = 40300
	CodeDomainNotAllowed     = 40301
	CodeExperienceNotFound   = 40401
	CodeImageNotFound        = 40402
	CodeDraftNotFound        = 40403
	CodeAttachmentNotFound   = 40404
	CodeSubmissionInProgress = 40901
	CodeAttachmentState      = 40902
	CodeInternalServer       = 50000
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is Error with a machine-readable payload, e.g. the failing
// field of a validation error.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

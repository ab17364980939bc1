package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"experienceboard/internal/app"
	"experienceboard/internal/attachment"
	"experienceboard/internal/model"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/transport/http/middleware"
	"experienceboard/internal/transport/http/response"
)

type ExperienceHandler struct {
	service *app.ExperienceService
	log     *logger.Logger
}

// yearField accepts the graduating year as a JSON number or string.
type yearField string

func (y *yearField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*y = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*y = yearField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*y = yearField(n.String())
	return nil
}

type ExperienceRequest struct {
	CompanyName           string    `json:"company_name"`
	ExperienceType        string    `json:"experience_type"`
	AssessmentType        string    `json:"assessment_type"`
	CandidateName         string    `json:"candidate_name"`
	GraduatingYear        yearField `json:"graduating_year"`
	Branch                string    `json:"branch"`
	Result                string    `json:"result"`
	ExperienceDescription string    `json:"experience_description"`
	AdditionalTips        *string   `json:"additional_tips"`
	DraftID               string    `json:"draft_id"`
}

func (r ExperienceRequest) input() app.ExperienceInput {
	return app.ExperienceInput{
		CompanyName:           r.CompanyName,
		ExperienceType:        r.ExperienceType,
		AssessmentType:        r.AssessmentType,
		CandidateName:         r.CandidateName,
		GraduatingYear:        string(r.GraduatingYear),
		Branch:                r.Branch,
		Result:                r.Result,
		ExperienceDescription: r.ExperienceDescription,
		AdditionalTips:        r.AdditionalTips,
	}
}

func NewExperienceHandler(service *app.ExperienceService, log *logger.Logger) *ExperienceHandler {
	return &ExperienceHandler{service: service, log: log}
}

func (h *ExperienceHandler) List(c *gin.Context) {
	query := app.ListQuery{
		Search: c.Query("q"),
		Facets: map[string]string{},
	}
	for _, name := range app.FacetNames() {
		if v, ok := c.GetQuery(name); ok {
			query.Facets[name] = v
		}
	}

	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		h.fail(c, err, "list experiences failed")
		return
	}
	response.OK(c, gin.H{
		"items":  result.Items,
		"total":  result.Total,
		"facets": result.Facets,
		"labels": gin.H{
			"experience_type": model.Labels("experience_type"),
			"assessment_type": model.Labels("assessment_type"),
			"result":          model.Labels("result"),
		},
	})
}

func (h *ExperienceHandler) Get(c *gin.Context) {
	exp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "fetch experience failed")
		return
	}
	response.OK(c, exp)
}

func (h *ExperienceHandler) Create(c *gin.Context) {
	var req ExperienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Create(c.Request.Context(), middleware.UserID(c), req.input(), req.DraftID)
	if err != nil {
		h.fail(c, err, "failed to submit experience, please try again")
		return
	}
	response.Created(c, submitView(result))
}

func (h *ExperienceHandler) Update(c *gin.Context) {
	var req ExperienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input(), req.DraftID)
	if err != nil {
		h.fail(c, err, "failed to update experience, please try again")
		return
	}
	response.OK(c, submitView(result))
}

func (h *ExperienceHandler) Delete(c *gin.Context) {
	report, err := h.service.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to delete experience, please try again")
		return
	}
	response.OK(c, gin.H{"attachments": report})
}

func (h *ExperienceHandler) DeleteImage(c *gin.Context) {
	err := h.service.DeleteImage(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("imageId"))
	if err != nil {
		h.fail(c, err, "failed to delete image, please try again")
		return
	}
	response.OK(c, nil)
}

func submitView(r *app.SubmitResult) gin.H {
	return gin.H{
		"experience":  r.Experience,
		"attachments": r.Attachments,
		"outcome":     r.Attachments.Outcome(),
	}
}

// fail maps service errors onto the envelope. Unknown errors are logged and
// answered with fallback.
func (h *ExperienceHandler) fail(c *gin.Context, err error, fallback string) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeValidation, verr.Message, gin.H{"field": verr.Field})
	case errors.Is(err, app.ErrExperienceNotFound):
		response.Error(c, http.StatusNotFound, response.CodeExperienceNotFound, "experience not found")
	case errors.Is(err, app.ErrImageNotFound):
		response.Error(c, http.StatusNotFound, response.CodeImageNotFound, "image not found")
	case errors.Is(err, attachment.ErrDraftNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDraftNotFound, "draft not found or expired")
	case errors.Is(err, app.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "you can only change your own experiences")
	case errors.Is(err, app.ErrSubmissionInProgress):
		response.Error(c, http.StatusConflict, response.CodeSubmissionInProgress, "a submission is already in progress")
	default:
		h.log.Error(fallback,
			"path", c.FullPath(),
			"user_id", middleware.UserID(c),
			"error", err,
		)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

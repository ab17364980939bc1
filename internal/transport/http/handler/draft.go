package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"experienceboard/internal/attachment"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/transport/http/middleware"
	"experienceboard/internal/transport/http/response"
)

// DraftHandler manages the pending files a user stages before submitting.
type DraftHandler struct {
	drafts *attachment.Drafts
	log    *logger.Logger
}

func NewDraftHandler(drafts *attachment.Drafts, log *logger.Logger) *DraftHandler {
	return &DraftHandler{drafts: drafts, log: log}
}

func (h *DraftHandler) Create(c *gin.Context) {
	d := h.drafts.Create(middleware.UserID(c))
	response.Created(c, d.View())
}

func (h *DraftHandler) Get(c *gin.Context) {
	d, err := h.drafts.Get(middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "fetch draft failed")
		return
	}
	response.OK(c, d.View())
}

func (h *DraftHandler) Discard(c *gin.Context) {
	if err := h.drafts.Discard(middleware.UserID(c), c.Param("id")); err != nil {
		h.fail(c, err, "discard draft failed")
		return
	}
	response.OK(c, nil)
}

// AddFiles appends every multipart "images" part as a pending slot.
func (h *DraftHandler) AddFiles(c *gin.Context) {
	d, err := h.drafts.Get(middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "add files failed")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "expected multipart form with images")
		return
	}
	headers := form.File["images"]
	if len(headers) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no images in request")
		return
	}

	added := make([]attachment.SlotView, 0, len(headers))
	for _, fh := range headers {
		views, err := addOne(d.Manager, fh)
		added = append(added, views...)
		if err != nil {
			h.fail(c, err, fmt.Sprintf("could not add %s, please try again", fh.Filename))
			return
		}
	}
	response.Created(c, gin.H{"added": added, "draft": d.View()})
}

func addOne(m *attachment.Manager, fh *multipart.FileHeader) ([]attachment.SlotView, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload part failed: %w", err)
	}
	defer f.Close()
	return m.AddPending(attachment.PendingFile{Name: fh.Filename, Reader: f})
}

func (h *DraftHandler) RemoveFile(c *gin.Context) {
	d, err := h.drafts.Get(middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "remove file failed")
		return
	}
	if err := d.Manager.RemovePending(c.Param("slot")); err != nil {
		h.fail(c, err, "remove file failed")
		return
	}
	response.OK(c, d.View())
}

// Preview streams a pending file back to its owner.
func (h *DraftHandler) Preview(c *gin.Context) {
	d, err := h.drafts.Get(middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "preview failed")
		return
	}
	rc, view, err := d.Manager.OpenPreview(c.Param("slot"))
	if err != nil {
		h.fail(c, err, "preview failed")
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", view.DisplayName))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.Warn("stream preview failed", "slot_id", view.ID, "error", err)
	}
}

func (h *DraftHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, attachment.ErrDraftNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDraftNotFound, "draft not found or expired")
	case errors.Is(err, attachment.ErrSlotNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAttachmentNotFound, "file not found in draft")
	case errors.Is(err, attachment.ErrSlotState):
		response.Error(c, http.StatusConflict, response.CodeAttachmentState, "file is already uploaded")
	case errors.Is(err, attachment.ErrManagerClosed):
		response.Error(c, http.StatusNotFound, response.CodeDraftNotFound, "draft not found or expired")
	default:
		h.log.Error(fallback, "path", c.FullPath(), "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

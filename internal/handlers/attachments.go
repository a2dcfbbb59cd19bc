package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wintent/plugin-config/internal/filemanager"
	appErrors "github.com/wintent/plugin-config/pkg/errors"
	"github.com/wintent/plugin-config/pkg/response"
)

// AttachmentLister lists stored attachments.
type AttachmentLister interface {
	List(ctx context.Context, query filemanager.ListQuery) (filemanager.ListResult, error)
}

// AttachmentHandler serves the attachments collection.
type AttachmentHandler struct {
	files AttachmentLister
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(files AttachmentLister) (*AttachmentHandler, error) {
	if files == nil {
		return nil, errors.New("attachment handler: lister is required")
	}
	return &AttachmentHandler{files: files}, nil
}

// List handles GET /api/attachments:list?filter=<json>&page=&pageSize=.
func (h *AttachmentHandler) List(c *gin.Context) {
	if !requireAction(c, "list") {
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		response.Error(c, appErrors.ErrInvalidFilter)
		return
	}

	query := filemanager.ListQuery{}
	for key, value := range filter {
		switch key {
		case "title":
			title, ok := stringCondition(value)
			if !ok {
				response.Error(c, appErrors.NewBadRequest("filter title must be a string"))
				return
			}
			query.Title = title
		default:
			response.Error(c, appErrors.NewBadRequest(fmt.Sprintf("unsupported filter field %q", key)))
			return
		}
	}

	if query.Page, err = parseIntQuery(c, "page", 1); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}
	if query.PageSize, err = parseIntQuery(c, "pageSize", filemanager.DefaultPageSize); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	result, err := h.files.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list attachments"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Items, response.NewMeta(result.Total, result.Page, result.PageSize))
}

package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"essayhub/internal/repositories"
	"essayhub/internal/services"
)

type DocumentHandler struct {
	Service *services.DocumentService
}

func NewDocumentHandler(service *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// GET /orders/:id/submission — metadata: what would the caller get?
func (h *DocumentHandler) GetSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID, roleID := getUserAndRole(c)

	rf, err := h.Service.ResolveSubmission(c.Request.Context(), id, userID, roleID)
	if err != nil {
		writeDocumentError(c, err)
		return
	}

	access := "preview"
	if rf.Access == services.AccessFull {
		access = "full"
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": id,
		"file":     rf.Original,
		"access":   access,
	})
}

// GET /orders/:id/submission/file — the byte-serving endpoint. Preview gets
// inline no-store headers; full access gets a plain download.
func (h *DocumentHandler) ServeSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID, roleID := getUserAndRole(c)

	rf, err := h.Service.ResolveSubmission(c.Request.Context(), id, userID, roleID)
	if err != nil {
		writeDocumentError(c, err)
		return
	}
	serveResolved(c, rf)
}

// GET /files/:name — legacy direct path; the owning order is re-derived from
// the filename and the same decision table applies.
func (h *DocumentHandler) ServeByFilename(c *gin.Context) {
	userID, roleID := getUserAndRole(c)

	rf, err := h.Service.ResolveByFilename(c.Request.Context(), c.Param("name"), userID, roleID)
	if err != nil {
		writeDocumentError(c, err)
		return
	}
	serveResolved(c, rf)
}

func serveResolved(c *gin.Context, rf *services.ResolvedFile) {
	switch rf.Access {
	case services.AccessFull:
		if rf.IsPDF {
			c.Header("Content-Type", "application/pdf")
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rf.Name))
		c.File(rf.AbsPath)
	case services.AccessPreview:
		if rf.IsPDF {
			c.Header("Content-Type", "application/pdf")
		}
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, rf.Name))
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Header("X-Content-Type-Options", "nosniff")
		c.File(rf.AbsPath)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// The viewer page is a deterrent, not a security boundary: the decision table
// on the /file endpoint is what actually gates the bytes.
var previewPageTmpl = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Order #{{.OrderID}} — preview</title>
<style>
  html, body { margin: 0; height: 100%; overflow: hidden; }
  iframe { width: 100%; height: 100%; border: 0; }
  .watermark {
    position: fixed; top: 40%; left: 10%; right: 10%;
    text-align: center; font: bold 28px sans-serif; color: rgba(160,160,160,.45);
    transform: rotate(-25deg); pointer-events: none; user-select: none; z-index: 10;
  }
</style>
</head>
<body oncontextmenu="return false">
<div class="watermark">PREVIEW — user {{.UserID}} — order {{.OrderID}} — {{.Timestamp}}</div>
<iframe src="{{.FileURL}}#toolbar=0"></iframe>
<script>
  document.addEventListener('keydown', function (e) {
    if ((e.ctrlKey || e.metaKey) && ['s', 'p', 'u'].includes(e.key.toLowerCase())) {
      e.preventDefault();
    }
  });
</script>
</body>
</html>`))

// GET /orders/:id/submission/view — watermarked wrapper around the preview
// stream. Same access check as the /file endpoint.
func (h *DocumentHandler) ViewSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	userID, roleID := getUserAndRole(c)

	if _, err := h.Service.ResolveSubmission(c.Request.Context(), id, userID, roleID); err != nil {
		writeDocumentError(c, err)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	_ = previewPageTmpl.Execute(c.Writer, gin.H{
		"OrderID":   id,
		"UserID":    userID,
		"Timestamp": time.Now().Format(time.RFC3339),
		"FileURL":   fmt.Sprintf("/orders/%d/submission/file", id),
	})
}

func writeDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound),
		errors.Is(err, services.ErrNoSubmission),
		errors.Is(err, services.ErrFileMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrBadFilepath):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad filepath"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

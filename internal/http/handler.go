package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/snowops-boq/internal/excel"
	"github.com/nurpe/snowops-boq/internal/http/middleware"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/pdf"
	"github.com/nurpe/snowops-boq/internal/service"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

type Handler struct {
	tree      *service.TreeService
	addendums *service.AddendumService
	vigent    *service.VigentService
	excel     *excel.Generator
	pdf       *pdf.Generator
	log       zerolog.Logger
}

func NewHandler(
	tree *service.TreeService,
	addendums *service.AddendumService,
	vigent *service.VigentService,
	excelGenerator *excel.Generator,
	pdfGenerator *pdf.Generator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		tree:      tree,
		addendums: addendums,
		vigent:    vigent,
		excel:     excelGenerator,
		pdf:       pdfGenerator,
		log:       log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware, middleware.ReadOnly())

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.GET("/contracts/:id/items", h.listItems)
	protected.POST("/contracts/:id/items", h.createItem)
	protected.PUT("/contracts/:id/items/reorder", h.reorderItems)
	protected.GET("/contracts/:id/vigent-items", h.vigentItems)
	protected.GET("/contracts/:id/vigent-items/export", h.exportVigentItems)
	protected.GET("/contracts/:id/addendums", h.listAddendums)
	protected.POST("/contracts/:id/addendums", h.createAddendum)

	protected.PUT("/items/:id", h.updateItem)
	protected.DELETE("/items/:id", h.deleteItem)
	protected.PUT("/items/:id/reparent", h.reparentItem)

	protected.GET("/addendums/:id", h.getAddendum)
	protected.POST("/addendums/:id/operations", h.addOperation)
	protected.POST("/addendums/:id/approve", h.approveAddendum)
	protected.POST("/addendums/:id/cancel", h.cancelAddendum)
	protected.GET("/addendums/:id/summary.pdf", h.addendumSummaryPDF)

	protected.DELETE("/operations/:id", h.removeOperation)
}

type errorKind struct {
	err    error
	kind   string
	status int
}

var errorKinds = []errorKind{
	{service.ErrCycle, "CYCLE", http.StatusConflict},
	{service.ErrTypeHierarchy, "TYPE_HIERARCHY", http.StatusUnprocessableEntity},
	{service.ErrInvalidState, "INVALID_STATE", http.StatusConflict},
	{service.ErrIllegalOperation, "ILLEGAL_OPERATION", http.StatusUnprocessableEntity},
	{service.ErrEmptyAddendum, "EMPTY_ADDENDUM", http.StatusUnprocessableEntity},
	{service.ErrConfirmationRequired, "CONFIRMATION_REQUIRED", http.StatusPreconditionRequired},
	{service.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{service.ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{service.ErrPermissionDenied, "PERMISSION_DENIED", http.StatusForbidden},
	{service.ErrEditLocked, "EDIT_LOCKED", http.StatusLocked},
}

func (h *Handler) handleError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			c.JSON(k.status, gin.H{"error": err.Error(), "kind": k.kind})
			return
		}
	}
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": "INTERNAL"})
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "kind": "INVALID_INPUT"})
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal", "kind": "UNAUTHORIZED"})
	}
	return principal, ok
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) editOptions(c *gin.Context) (service.EditOptions, bool) {
	principal, ok := h.principal(c)
	if !ok {
		return service.EditOptions{}, false
	}
	unlock := false
	if raw := strings.TrimSpace(c.Query("unlock_editing")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.badRequest(c, "invalid unlock_editing")
			return service.EditOptions{}, false
		}
		unlock = parsed
	}
	return service.EditOptions{Principal: principal, UnlockEditing: unlock}, true
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, service.ErrInvalidInput
	}
	return &id, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

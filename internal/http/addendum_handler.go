package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/service"
)

type createAddendumRequest struct {
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"`
}

type newItemRequest struct {
	Type        string  `json:"type"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Unit        *string `json:"unit"`
	ParentID    *string `json:"parent_id"`
}

type operationRequest struct {
	OperationType string              `json:"operation_type" binding:"required"`
	TargetItemID  *string             `json:"target_item_id"`
	NewQuantity   decimal.NullDecimal `json:"new_quantity"`
	NewUnitPrice  decimal.NullDecimal `json:"new_unit_price"`
	NewItem       *newItemRequest     `json:"new_item"`
}

type cancelRequest struct {
	ConfirmCancellation bool `json:"confirm_cancellation"`
}

func (r operationRequest) input(principal model.Principal) (service.OperationInput, error) {
	opType := model.OperationType(strings.ToUpper(strings.TrimSpace(r.OperationType)))
	if !opType.Valid() {
		return service.OperationInput{}, fmt.Errorf("%w: unknown operation type %q", service.ErrInvalidInput, r.OperationType)
	}
	target, err := parseOptionalID(r.TargetItemID)
	if err != nil {
		return service.OperationInput{}, fmt.Errorf("%w: invalid target_item_id", service.ErrInvalidInput)
	}
	input := service.OperationInput{
		Type:         opType,
		TargetItemID: target,
		NewQuantity:  r.NewQuantity,
		NewUnitPrice: r.NewUnitPrice,
		Principal:    principal,
	}
	if r.NewItem != nil {
		parentID, err := parseOptionalID(r.NewItem.ParentID)
		if err != nil {
			return service.OperationInput{}, fmt.Errorf("%w: invalid new_item.parent_id", service.ErrInvalidInput)
		}
		var itemType model.ItemType
		if strings.TrimSpace(r.NewItem.Type) != "" {
			parsed, ok := model.ParseItemType(r.NewItem.Type)
			if !ok {
				return service.OperationInput{}, fmt.Errorf("%w: unknown item type %q", service.ErrInvalidInput, r.NewItem.Type)
			}
			itemType = parsed
		}
		input.NewItem = &service.NewItemInput{
			Type:        itemType,
			Code:        r.NewItem.Code,
			Description: r.NewItem.Description,
			Unit:        r.NewItem.Unit,
			ParentID:    parentID,
		}
	}
	return input, nil
}

func (h *Handler) listAddendums(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	addendums, err := h.addendums.List(c.Request.Context(), contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addendums": addendums})
}

func (h *Handler) createAddendum(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createAddendumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		h.badRequest(c, "invalid date")
		return
	}

	addendum, err := h.addendums.Create(c.Request.Context(), service.CreateAddendumInput{
		ContractID:  contractID,
		Description: req.Description,
		Date:        date,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addendum)
}

func (h *Handler) getAddendum(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	addendum, err := h.addendums.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, addendum)
}

func (h *Handler) addOperation(c *gin.Context) {
	addendumID, ok := h.pathID(c)
	if !ok {
		return
	}
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req operationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	input, err := req.input(principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	operation, err := h.addendums.AddOperation(c.Request.Context(), addendumID, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, operation)
}

func (h *Handler) removeOperation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.addendums.RemoveOperation(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) approveAddendum(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	addendum, err := h.addendums.Approve(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, addendum)
}

func (h *Handler) cancelAddendum(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err.Error())
			return
		}
	}

	addendum, err := h.addendums.Cancel(c.Request.Context(), id, req.ConfirmCancellation, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, addendum)
}

func (h *Handler) addendumSummaryPDF(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.addendums.Summary(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	content, err := h.pdf.Generate(*doc)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := fmt.Sprintf("addendum_%s_%d.pdf", sanitizeFileName(doc.Contract.Code), doc.Addendum.Number)
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, pdfContentType, content)
}

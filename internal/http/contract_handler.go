package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/service"
)

type createContractRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type itemRequest struct {
	ParentID            *string             `json:"parent_id"`
	Type                string              `json:"type" binding:"required"`
	Code                string              `json:"code" binding:"required"`
	Description         string              `json:"description"`
	Unit                *string             `json:"unit"`
	Quantity            decimal.NullDecimal `json:"quantity"`
	UnitPrice           decimal.NullDecimal `json:"unit_price"`
	MeasurementCriteria *string             `json:"measurement_criteria"`
}

type reparentRequest struct {
	ParentID *string `json:"parent_id"`
}

type reorderRequest struct {
	ParentID *string  `json:"parent_id"`
	ItemIDs  []string `json:"item_ids" binding:"required"`
}

func (r itemRequest) input() (service.ItemInput, error) {
	itemType, ok := model.ParseItemType(r.Type)
	if !ok {
		return service.ItemInput{}, fmt.Errorf("%w: unknown item type %q", service.ErrInvalidInput, r.Type)
	}
	parentID, err := parseOptionalID(r.ParentID)
	if err != nil {
		return service.ItemInput{}, err
	}
	return service.ItemInput{
		ParentID:            parentID,
		Type:                itemType,
		Code:                r.Code,
		Description:         r.Description,
		Unit:                r.Unit,
		Quantity:            r.Quantity,
		UnitPrice:           r.UnitPrice,
		MeasurementCriteria: r.MeasurementCriteria,
	}, nil
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}

	contract, err := h.tree.CreateContract(c.Request.Context(), service.CreateContractInput{
		Code:      req.Code,
		Name:      req.Name,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) getContract(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	contract, err := h.tree.GetContract(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	locked, err := h.tree.IsEditLocked(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contract, "edit_locked": locked})
}

func (h *Handler) listItems(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	rollup, err := h.tree.BaseTree(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollup)
}

func (h *Handler) createItem(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	opts, ok := h.editOptions(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		h.handleError(c, err)
		return
	}

	item, err := h.tree.Insert(c.Request.Context(), contractID, input, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	opts, ok := h.editOptions(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	input, err := req.input()
	if err != nil {
		h.handleError(c, err)
		return
	}

	item, err := h.tree.Update(c.Request.Context(), id, input, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) reparentItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	opts, ok := h.editOptions(c)
	if !ok {
		return
	}
	var req reparentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		h.badRequest(c, "invalid parent_id")
		return
	}

	item, err := h.tree.Reparent(c.Request.Context(), id, parentID, opts)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	opts, ok := h.editOptions(c)
	if !ok {
		return
	}
	if err := h.tree.Delete(c.Request.Context(), id, opts); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) reorderItems(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	opts, ok := h.editOptions(c)
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err.Error())
		return
	}
	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		h.badRequest(c, "invalid parent_id")
		return
	}
	ids := make([]uuid.UUID, 0, len(req.ItemIDs))
	for _, raw := range req.ItemIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			h.badRequest(c, "invalid item_ids")
			return
		}
		ids = append(ids, id)
	}

	if err := h.tree.Reorder(c.Request.Context(), contractID, parentID, ids, opts); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) vigentItems(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	view, err := h.vigent.Compute(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) exportVigentItems(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	contract, err := h.tree.GetContract(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	view, err := h.vigent.Compute(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	content, err := h.excel.Generate(*contract, &boq.Rollup{
		Roots:       view.Items,
		BaseTotal:   view.BaseTotal,
		ActiveTotal: view.ActiveTotal,
	}, view.Addendums)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := fmt.Sprintf("vigent_%s.xlsx", sanitizeFileName(contract.Code))
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, xlsxContentType, content)
}

func sanitizeFileName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "contract"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/snowops-boq/internal/model"
)

// ErrStatusChanged is returned when a status transition finds the addendum no
// longer in the expected state.
var ErrStatusChanged = errors.New("addendum status changed")

// AddendumRepository is the ledger of addendums and their operations.
type AddendumRepository struct {
	db *gorm.DB
}

func NewAddendumRepository(db *gorm.DB) *AddendumRepository {
	return &AddendumRepository{db: db}
}

// Create assigns the next contract scoped number and stores the addendum.
func (r *AddendumRepository) Create(ctx context.Context, addendum *model.Addendum) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Raw(`
			SELECT COALESCE(MAX(number), 0) FROM addendums WHERE contract_id = ?
		`, addendum.ContractID).Scan(&last).Error; err != nil {
			return err
		}
		addendum.Number = last + 1
		return tx.Create(addendum).Error
	})
}

func (r *AddendumRepository) Get(ctx context.Context, id uuid.UUID) (*model.Addendum, error) {
	var addendum model.Addendum
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&addendum).Error; err != nil {
		return nil, notFound(err, "addendum", id)
	}
	return &addendum, nil
}

func (r *AddendumRepository) GetWithOperations(ctx context.Context, id uuid.UUID) (*model.Addendum, error) {
	addendum, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ops, err := r.ListOperations(ctx, id)
	if err != nil {
		return nil, err
	}
	addendum.Operations = ops
	return addendum, nil
}

// ListByContract returns addendums ordered by number with their operations.
// With no statuses every addendum is returned.
func (r *AddendumRepository) ListByContract(ctx context.Context, contractID uuid.UUID, statuses ...model.AddendumStatus) ([]model.Addendum, error) {
	query := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var addendums []model.Addendum
	if err := query.Order("number ASC").Find(&addendums).Error; err != nil {
		return nil, err
	}
	if len(addendums) == 0 {
		return addendums, nil
	}

	ids := make([]uuid.UUID, len(addendums))
	index := make(map[uuid.UUID]int, len(addendums))
	for i, addendum := range addendums {
		ids[i] = addendum.ID
		index[addendum.ID] = i
	}

	var ops []model.AddendumOperation
	if err := r.db.WithContext(ctx).
		Where("addendum_id IN ?", ids).
		Order("sequence ASC").
		Find(&ops).Error; err != nil {
		return nil, err
	}
	for _, op := range ops {
		pos := index[op.AddendumID]
		addendums[pos].Operations = append(addendums[pos].Operations, op)
	}
	return addendums, nil
}

func (r *AddendumRepository) ListOperations(ctx context.Context, addendumID uuid.UUID) ([]model.AddendumOperation, error) {
	var ops []model.AddendumOperation
	err := r.db.WithContext(ctx).
		Where("addendum_id = ?", addendumID).
		Order("sequence ASC").
		Find(&ops).Error
	if err != nil {
		return nil, err
	}
	return ops, nil
}

func (r *AddendumRepository) GetOperation(ctx context.Context, id uuid.UUID) (*model.AddendumOperation, error) {
	var op model.AddendumOperation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&op).Error; err != nil {
		return nil, notFound(err, "operation", id)
	}
	return &op, nil
}

// AddOperation appends op to its addendum, assigning the next sequence.
func (r *AddendumRepository) AddOperation(ctx context.Context, op *model.AddendumOperation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Raw(`
			SELECT COALESCE(MAX(sequence), 0) FROM addendum_operations WHERE addendum_id = ?
		`, op.AddendumID).Scan(&last).Error; err != nil {
			return err
		}
		op.Sequence = last + 1
		return tx.Create(op).Error
	})
}

func (r *AddendumRepository) DeleteOperation(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.AddendumOperation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "operation", id)
	}
	return nil
}

func (r *AddendumRepository) MaxApprovedNumber(ctx context.Context, contractID uuid.UUID) (int, error) {
	var number int
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(MAX(number), 0) FROM addendums WHERE contract_id = ? AND status = ?
	`, contractID, model.AddendumStatusApproved).Scan(&number).Error; err != nil {
		return 0, err
	}
	return number, nil
}

func (r *AddendumRepository) CountApproved(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Addendum{}).
		Where("contract_id = ? AND status = ?", contractID, model.AddendumStatusApproved).
		Count(&count).Error
	return count, err
}

// MarkApproved freezes the operation values and totals and moves the addendum
// from DRAFT to APPROVED in one transaction.
func (r *AddendumRepository) MarkApproved(
	ctx context.Context,
	addendum *model.Addendum,
	values map[uuid.UUID]decimal.Decimal,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for opID, value := range values {
			if err := tx.Model(&model.AddendumOperation{}).
				Where("id = ? AND addendum_id = ?", opID, addendum.ID).
				Update("value", value).Error; err != nil {
				return err
			}
		}

		result := tx.Model(&model.Addendum{}).
			Where("id = ? AND status = ?", addendum.ID, model.AddendumStatusDraft).
			Updates(map[string]interface{}{
				"status":            model.AddendumStatusApproved,
				"total_addition":    addendum.TotalAddition,
				"total_suppression": addendum.TotalSuppression,
				"net_value":         addendum.NetValue,
				"totals_version":    addendum.TotalsVersion,
				"approved_at":       addendum.ApprovedAt,
				"approved_by":       addendum.ApprovedBy,
				"updated_at":        time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusChanged
		}
		return nil
	})
}

// MarkCancelled moves the addendum from the given status to CANCELLED. Draft
// cancellations also discard the operations.
func (r *AddendumRepository) MarkCancelled(
	ctx context.Context,
	addendum *model.Addendum,
	from model.AddendumStatus,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Addendum{}).
			Where("id = ? AND status = ?", addendum.ID, from).
			Updates(map[string]interface{}{
				"status":       model.AddendumStatusCancelled,
				"cancelled_at": addendum.CancelledAt,
				"cancelled_by": addendum.CancelledBy,
				"updated_at":   time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusChanged
		}
		if from == model.AddendumStatusDraft {
			return tx.Where("addendum_id = ?", addendum.ID).Delete(&model.AddendumOperation{}).Error
		}
		return nil
	})
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/snowops-boq/internal/model"
)

// ItemRepository persists the base contract item tree. Deleted items are
// soft deleted and never returned again.
type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]model.ContractItem, error) {
	var items []model.ContractItem
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("order_index ASC, code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemRepository) Get(ctx context.Context, id uuid.UUID) (*model.ContractItem, error) {
	var item model.ContractItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err, "item", id)
	}
	return &item, nil
}

func (r *ItemRepository) Create(ctx context.Context, item *model.ContractItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Update writes every editable column, including cleared leaf fields.
func (r *ItemRepository) Update(ctx context.Context, item *model.ContractItem) error {
	return r.db.WithContext(ctx).
		Model(item).
		Select("type", "code", "description", "unit", "quantity", "unit_price", "measurement_criteria").
		Updates(item).Error
}

func (r *ItemRepository) Reparent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID, orderIndex int) error {
	return r.db.WithContext(ctx).
		Model(&model.ContractItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"parent_id":   parentID,
			"order_index": orderIndex,
		}).Error
}

// Delete soft deletes the given items in one transaction.
func (r *ItemRepository) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("id IN ?", ids).Delete(&model.ContractItem{}).Error
	})
}

// Reorder assigns order indexes 0..n-1 following ids.
func (r *ItemRepository) Reorder(ctx context.Context, ids []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(&model.ContractItem{}).Where("id = ?", id).Update("order_index", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ItemRepository) NextOrderIndex(ctx context.Context, contractID uuid.UUID, parentID *uuid.UUID) (int, error) {
	query := r.db.WithContext(ctx).
		Model(&model.ContractItem{}).
		Where("contract_id = ?", contractID)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var next int
	if err := query.Select("COALESCE(MAX(order_index), -1) + 1").Scan(&next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/repository"
)

// VigentService answers vigent state queries: the base tree with every
// approved addendum replayed over it, rolled up per container.
type VigentService struct {
	contracts *repository.ContractRepository
	items     *repository.ItemRepository
	addendums *repository.AddendumRepository
	cache     VigentCache
	flight    singleflight.Group
	log       zerolog.Logger
}

type VigentView struct {
	ContractID        uuid.UUID        `json:"contract_id"`
	Items             []*boq.Node      `json:"items"`
	BaseTotal         decimal.Decimal  `json:"base_total"`
	ActiveTotal       decimal.Decimal  `json:"active_total"`
	MaxApprovedNumber int              `json:"max_approved_number"`
	Addendums         []model.Addendum `json:"addendums"`
}

func NewVigentService(
	contracts *repository.ContractRepository,
	items *repository.ItemRepository,
	addendums *repository.AddendumRepository,
	cache VigentCache,
	log zerolog.Logger,
) *VigentService {
	return &VigentService{
		contracts: contracts,
		items:     items,
		addendums: addendums,
		cache:     cache,
		log:       log,
	}
}

// Compute returns the vigent tree of a contract together with all of its
// addendums. Reads take no lock and see the last committed state.
func (s *VigentService) Compute(ctx context.Context, contractID uuid.UUID) (*VigentView, error) {
	if _, err := s.contracts.Get(ctx, contractID); err != nil {
		return nil, err
	}
	version, versioned := s.cache.Version(ctx, contractID)
	addendums, err := s.addendums.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	for i := range addendums {
		if addendums[i].Operations == nil {
			addendums[i].Operations = []model.AddendumOperation{}
		}
	}

	maxApproved := maxApprovedNumber(addendums)
	if !versioned {
		vigentCacheRequests.WithLabelValues("bypass").Inc()
		rollup, err := s.build(ctx, contractID, addendums)
		if err != nil {
			return nil, err
		}
		return newVigentView(contractID, rollup, maxApproved, addendums), nil
	}
	rollup, err := s.rollup(ctx, contractID, version, addendums, maxApproved)
	if err != nil {
		return nil, err
	}

	return newVigentView(contractID, rollup, maxApproved, addendums), nil
}

func newVigentView(contractID uuid.UUID, rollup *boq.Rollup, maxApproved int, addendums []model.Addendum) *VigentView {
	return &VigentView{
		ContractID:        contractID,
		Items:             rollup.Roots,
		BaseTotal:         rollup.BaseTotal,
		ActiveTotal:       rollup.ActiveTotal,
		MaxApprovedNumber: maxApproved,
		Addendums:         addendums,
	}
}

func (s *VigentService) rollup(
	ctx context.Context,
	contractID uuid.UUID,
	version uint64,
	addendums []model.Addendum,
	maxApproved int,
) (*boq.Rollup, error) {
	if cached, ok := s.cache.Get(ctx, contractID); ok && cached.Version == version && cached.MaxApprovedNumber == maxApproved {
		vigentCacheRequests.WithLabelValues("hit").Inc()
		return cached.Rollup, nil
	}
	vigentCacheRequests.WithLabelValues("miss").Inc()

	key := fmt.Sprintf("%s:%d:%d", contractID, version, maxApproved)
	result, err, _ := s.flight.Do(key, func() (interface{}, error) {
		rollup, err := s.build(ctx, contractID, addendums)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, contractID, &CachedVigent{Version: version, MaxApprovedNumber: maxApproved, Rollup: rollup})
		return rollup, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*boq.Rollup), nil
}

func (s *VigentService) build(ctx context.Context, contractID uuid.UUID, addendums []model.Addendum) (*boq.Rollup, error) {
	rows, err := s.items.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var entries []boq.Entry
	for _, addendum := range addendums {
		if addendum.Status != model.AddendumStatusApproved {
			continue
		}
		entry, err := toEntry(addendum)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	start := time.Now()
	tree := boq.NewTree(rows)
	rollup := boq.Aggregate(tree, boq.Replay(tree, entries))
	replayDuration.Observe(time.Since(start).Seconds())

	s.log.Debug().
		Str("contract_id", contractID.String()).
		Int("items", tree.Len()).
		Int("approved_addendums", len(entries)).
		Msg("vigent state computed")
	return rollup, nil
}

// Invalidate drops the cached rollup of a contract and bumps its version.
// Callers invalidate after committing, so a rollup built from inputs read
// before the bump carries an older version and is never served.
func (s *VigentService) Invalidate(ctx context.Context, contractID uuid.UUID) {
	s.cache.Invalidate(ctx, contractID)
}

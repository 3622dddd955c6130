package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurpe/snowops-boq/internal/boq"
	"github.com/nurpe/snowops-boq/internal/model"
	"github.com/nurpe/snowops-boq/internal/repository"
)

// ledger is a consistent read of a contract's base tree and every addendum.
type ledger struct {
	tree      *boq.Tree
	addendums []model.Addendum
	approved  []boq.Entry
	drafts    []boq.Entry
}

func loadLedger(
	ctx context.Context,
	items *repository.ItemRepository,
	addendums *repository.AddendumRepository,
	contractID uuid.UUID,
) (*ledger, error) {
	rows, err := items.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	all, err := addendums.ListByContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	l := &ledger{tree: boq.NewTree(rows), addendums: all}
	for _, addendum := range all {
		if addendum.Status == model.AddendumStatusCancelled {
			continue
		}
		entry, err := toEntry(addendum)
		if err != nil {
			return nil, err
		}
		if addendum.Status == model.AddendumStatusApproved {
			l.approved = append(l.approved, entry)
		} else {
			l.drafts = append(l.drafts, entry)
		}
	}
	return l, nil
}

func toEntry(addendum model.Addendum) (boq.Entry, error) {
	ops, err := boq.DecodeAll(addendum.Operations)
	if err != nil {
		return boq.Entry{}, err
	}
	return boq.Entry{AddendumID: addendum.ID, Number: addendum.Number, Ops: ops}, nil
}

func (l *ledger) find(id uuid.UUID) *model.Addendum {
	for i := range l.addendums {
		if l.addendums[i].ID == id {
			return &l.addendums[i]
		}
	}
	return nil
}

// approvedBefore returns the approved entries numbered below number.
func (l *ledger) approvedBefore(number int) []boq.Entry {
	entries := make([]boq.Entry, 0, len(l.approved))
	for _, entry := range l.approved {
		if entry.Number < number {
			entries = append(entries, entry)
		}
	}
	return entries
}

// withEntry returns the approved ledger followed by entry.
func (l *ledger) withEntry(entry boq.Entry) []boq.Entry {
	entries := make([]boq.Entry, 0, len(l.approved)+1)
	entries = append(entries, l.approved...)
	return append(entries, entry)
}

func maxApprovedNumber(addendums []model.Addendum) int {
	highest := 0
	for _, addendum := range addendums {
		if addendum.Status == model.AddendumStatusApproved && addendum.Number > highest {
			highest = addendum.Number
		}
	}
	return highest
}

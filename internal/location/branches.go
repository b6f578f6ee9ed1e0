package location

import (
	"fmt"

	"rungroj/internal/config"
	"rungroj/internal/models"
)

// BranchTable is the static list of pickup branches.
type BranchTable struct {
	branches []models.Branch
	byID     map[string]models.Branch
}

func NewBranchTable(branches []models.Branch) (*BranchTable, error) {
	if err := config.ValidateBranches(branches); err != nil {
		return nil, fmt.Errorf("branch table: %w", err)
	}
	t := &BranchTable{
		branches: append([]models.Branch(nil), branches...),
		byID:     make(map[string]models.Branch, len(branches)),
	}
	for _, b := range branches {
		t.byID[b.ID] = b
	}
	return t, nil
}

// Branches returns the branches in display order.
func (t *BranchTable) Branches() []models.Branch {
	return append([]models.Branch(nil), t.branches...)
}

func (t *BranchTable) Get(id string) (models.Branch, bool) {
	b, ok := t.byID[id]
	return b, ok
}

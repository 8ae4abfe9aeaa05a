package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountNode is one account of the chart tree with its rolled-up balance
type AccountNode struct {
	*Account
	Children []*AccountNode
	Rollup   decimal.Decimal
}

// accountIndex is the arena of accounts plus a parent -> children adjacency index
type accountIndex struct {
	byID     map[uuid.UUID]*Account
	children map[uuid.UUID][]*Account
	roots    []*Account
}

func newAccountIndex(accounts []*Account) *accountIndex {
	idx := &accountIndex{
		byID:     make(map[uuid.UUID]*Account, len(accounts)),
		children: make(map[uuid.UUID][]*Account),
	}
	for _, a := range accounts {
		idx.byID[a.ID] = a
	}
	for _, a := range accounts {
		// a dangling parent id is treated as a root so the forest stays complete
		if a.ParentID != nil {
			if _, ok := idx.byID[*a.ParentID]; ok {
				idx.children[*a.ParentID] = append(idx.children[*a.ParentID], a)
				continue
			}
		}
		idx.roots = append(idx.roots, a)
	}

	byCode := func(a, b *Account) int { return strings.Compare(a.Code, b.Code) }
	slices.SortFunc(idx.roots, byCode)
	for id := range idx.children {
		slices.SortFunc(idx.children[id], byCode)
	}
	return idx
}

// depth returns the 1-based depth of id, or -1 when its ancestor chain loops
func (idx *accountIndex) depth(id uuid.UUID) int {
	depth := 0
	seen := make(map[uuid.UUID]struct{})
	for cur, ok := idx.byID[id]; ok; {
		if _, loop := seen[cur.ID]; loop {
			return -1
		}
		seen[cur.ID] = struct{}{}
		depth++
		if cur.ParentID == nil {
			break
		}
		cur, ok = idx.byID[*cur.ParentID]
	}
	return depth
}

// height returns the number of levels in the subtree rooted at id (a leaf is 1)
func (idx *accountIndex) height(id uuid.UUID) int {
	best := 0
	for _, child := range idx.children[id] {
		best = max(best, idx.height(child.ID))
	}
	return best + 1
}

// checkParent verifies that placing a subtree of the given height rooted at id
// under parentID keeps the chart a forest of group-parented, bounded-depth trees.
func (idx *accountIndex) checkParent(id, parentID uuid.UUID, subtreeHeight, maxDepth int) error {
	if parentID == id {
		return stateError(ErrCycleDetected, id.String())
	}

	parent, ok := idx.byID[parentID]
	if !ok {
		return referenceError(ErrInvalidParent, "parent_id", parentID.String())
	}
	if !parent.IsGroup {
		return referenceError(ErrInvalidParent, "parent_id", parentID.String())
	}

	// ancestor walk: the new parent must not sit inside id's subtree
	seen := make(map[uuid.UUID]struct{})
	for cur := parent; cur != nil; {
		if cur.ID == id {
			return stateError(ErrCycleDetected, id.String())
		}
		if _, loop := seen[cur.ID]; loop {
			return stateError(ErrCycleDetected, cur.ID.String())
		}
		seen[cur.ID] = struct{}{}
		if cur.ParentID == nil {
			break
		}
		cur = idx.byID[*cur.ParentID]
	}

	if idx.depth(parentID)+subtreeHeight > maxDepth {
		return validationError(fmt.Errorf("%w: max %d", ErrHierarchyTooDeep, maxDepth), "parent_id")
	}
	return nil
}

// forest builds the node tree for every root, computing roll-ups bottom-up
func (idx *accountIndex) forest() []*AccountNode {
	nodes := make([]*AccountNode, 0, len(idx.roots))
	for _, root := range idx.roots {
		nodes = append(nodes, idx.node(root))
	}
	return nodes
}

func (idx *accountIndex) node(a *Account) *AccountNode {
	n := &AccountNode{Account: a, Rollup: decimal.Zero}
	if !a.IsGroup {
		n.Rollup = a.Balance
	}
	for _, child := range idx.children[a.ID] {
		c := idx.node(child)
		n.Children = append(n.Children, c)
		n.Rollup = n.Rollup.Add(c.Rollup)
	}
	return n
}

// rollup sums the balances of the leaf accounts under id (id itself when a leaf)
func (idx *accountIndex) rollup(id uuid.UUID) decimal.Decimal {
	a := idx.byID[id]
	if !a.IsGroup {
		return a.Balance
	}
	total := decimal.Zero
	for _, child := range idx.children[id] {
		total = total.Add(idx.rollup(child.ID))
	}
	return total
}

// BuildHierarchy returns the chart of accounts as a forest ordered by code
func (s *Service) BuildHierarchy(ctx context.Context) ([]*AccountNode, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.forest(), nil
}

// RollupBalance returns the sum of all leaf balances under the given account.
// For a leaf account it is the account's own balance.
func (s *Service) RollupBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if _, ok := idx.byID[accountID]; !ok {
		return decimal.Zero, referenceError(ErrAccountNotFound, "id", accountID.String())
	}
	return idx.rollup(accountID), nil
}

package reconciler

import (
	"cmp"
	"slices"

	"github.com/crmarques/declagate/resource"
)

var operationRank = map[resource.Operation]int{
	resource.OperationDelete: 0,
	resource.OperationCreate: 1,
	resource.OperationUpdate: 2,
}

// Order sorts events by the schema's apply order, then by operation (delete,
// create, update). Root resources take the first slot of their category that
// admits them; child resources skip root-only slots. Categories missing from
// the order follow in first-seen order. The sort is stable and returns a new
// slice.
func Order(events []resource.Event, schema resource.Schema) []resource.Event {
	unknown := map[resource.Category]int{}
	rank := func(event resource.Event) int {
		if position := schema.SlotRank(event.Category, event.ParentID == ""); position >= 0 {
			return position
		}
		position, found := unknown[event.Category]
		if !found {
			position = len(schema.Order) + len(unknown)
			unknown[event.Category] = position
		}
		return position
	}
	for _, event := range events {
		rank(event)
	}

	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b resource.Event) int {
		if bySlot := cmp.Compare(rank(a), rank(b)); bySlot != 0 {
			return bySlot
		}
		return cmp.Compare(operationRank[a.Operation], operationRank[b.Operation])
	})
	return ordered
}

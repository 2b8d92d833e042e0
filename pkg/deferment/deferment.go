// Package deferment hands out futures for objects that are not available
// yet and settles them when the objects arrive.
package deferment

import "github.com/marmos91/objectloader/pkg/objects"

// Deferment hands out one future per object id.
type Deferment interface {
	// Defer returns the future for id. known is true when the caller need
	// not request the object: it was already requested, or the returned
	// future is already settled.
	Defer(id string) (f *Future, known bool, err error)

	// Undefer settles the future for item.BaseID with item.Base.
	Undefer(item objects.Item)

	// Reject settles a pending future for id with err and forgets the id,
	// so a later Defer requests it again.
	Reject(id string, err error)

	// Dispose releases resources and settles pending futures.
	Dispose()
}

package access

import (
	"context"

	"blogicum/models"
)

// Owned is anything with a single owning user.
type Owned interface {
	OwnerID() uint
}

// Lookup loads the resource a request wants to change.
type Lookup func(ctx context.Context) (Owned, error)

// CanMutate reports whether requesterID may edit or delete resource.
// There is no staff override.
func CanMutate(resource Owned, requesterID uint) bool {
	return requesterID != 0 && resource != nil && resource.OwnerID() == requesterID
}

// Authorize loads a resource and checks requesterID owns it. Lookup errors are
// returned unchanged; a foreign resource yields a PERMISSION_DENIED AppError.
func Authorize(ctx context.Context, requesterID uint, lookup Lookup) (Owned, error) {
	if requesterID == 0 {
		return nil, models.NewPermissionDeniedError("authentication required")
	}
	resource, err := lookup(ctx)
	if err != nil {
		return nil, err
	}
	if !CanMutate(resource, requesterID) {
		return resource, models.NewPermissionDeniedError("only the author can change this")
	}
	return resource, nil
}

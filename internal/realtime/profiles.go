package realtime

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// CoalescedProfiles collapses concurrent lookups of the same user into one
// call to the underlying store.
type CoalescedProfiles struct {
	store ProfileStore
	group singleflight.Group
}

// NewCoalescedProfiles wraps store.
func NewCoalescedProfiles(store ProfileStore) *CoalescedProfiles {
	return &CoalescedProfiles{store: store}
}

// FindProfile implements ProfileStore.
func (c *CoalescedProfiles) FindProfile(ctx context.Context, userID string) (Profile, error) {
	v, err, _ := c.group.Do(userID, func() (any, error) {
		return c.store.FindProfile(ctx, userID)
	})
	if err != nil {
		return Profile{}, err
	}
	return v.(Profile), nil
}

// displayProfile resolves a profile for presence events, falling back to the
// bare identity when the store cannot answer.
func displayProfile(ctx context.Context, store ProfileStore, userID string) Profile {
	p, err := store.FindProfile(ctx, userID)
	if err != nil {
		return Profile{ID: userID, Name: userID}
	}
	if p.Name == "" {
		p.Name = userID
	}
	return p
}

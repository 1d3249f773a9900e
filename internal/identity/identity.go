// ABOUTME: Durable device identity presented to the gateway at connect time.
// ABOUTME: Defines the repository interface with explicit load/create/persist semantics.

package identity

import "context"

// DeviceIdentity is the stable identity of this device. It is created
// once, persisted, loaded at process start, and immutable for the
// lifetime of a connection.
type DeviceIdentity struct {
	// DeviceID is an opaque stable identifier.
	DeviceID string

	// DeviceToken is an optional secret credential bound to the device.
	DeviceToken string
}

// Repository loads and persists the device identity. Implementations
// must propagate storage errors: an existing-but-unreadable identity is
// an error, never a silent fallback to a fresh identity.
type Repository interface {
	// LoadOrCreate returns the stored identity, creating and persisting
	// a new one only when none exists yet.
	LoadOrCreate(ctx context.Context) (*DeviceIdentity, error)

	// Save persists the identity, replacing any stored one.
	Save(ctx context.Context, id *DeviceIdentity) error
}

// ABOUTME: Store interface and data types for zero-gateway persistence
// ABOUTME: Defines paired devices and durable panic state operations

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/zero-gateway/internal/panicmode"
)

// ErrDeviceNotFound is returned when no device matches the given identity.
var ErrDeviceNotFound = errors.New("device not found")

// ErrDuplicateDevice is returned when pairing a fingerprint that is already
// paired.
var ErrDuplicateDevice = errors.New("device already paired")

// Device is a paired device identity in the trust store. The fingerprint is
// the opaque proof a device presents at connection time; how it is derived
// belongs to the pairing handshake, which this layer treats as external.
type Device struct {
	ID          string
	Name        string
	Fingerprint string
	PairedAt    time.Time
	RevokedAt   *time.Time
}

// Revoked reports whether the device has been revoked.
func (d *Device) Revoked() bool {
	return d.RevokedAt != nil
}

// Store defines the persistence operations the gateway needs.
type Store interface {
	// Devices (pairing trust store)
	PairDevice(ctx context.Context, device *Device) error
	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*Device, error)
	ListDevices(ctx context.Context) ([]*Device, error)
	RevokeDevice(ctx context.Context, id string) error

	// Durable panic state (see internal/panicmode)
	panicmode.StateStore

	// Close releases any resources held by the store.
	Close() error
}

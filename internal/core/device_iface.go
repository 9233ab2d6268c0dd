package core

import (
	"context"

	"github.com/dkeye/Consult/internal/domain"
)

type DeviceInfo struct {
	ID    string
	Label string
	Kind  domain.TrackKind
}

// DeviceLease holds capture access until released.
type DeviceLease interface {
	Release()
}

//go:generate mockgen -destination=mock/device_mock.go -package=mock . DeviceProber,DeviceLease

// DeviceProber lists input devices and asks for capture permission.
// Request fails with ErrPermissionDenied when the user refuses.
type DeviceProber interface {
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
	Request(ctx context.Context, kinds []domain.TrackKind) (DeviceLease, error)
}

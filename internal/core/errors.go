package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/Consult/internal/domain"
)

var (
	ErrInvalidState     = errors.New("action not allowed in current state")
	ErrBackpressure     = errors.New("backpressure")
	ErrSourceClosed     = errors.New("media source closed")
	ErrPermissionDenied = errors.New("device permission denied")
	ErrNotJoined        = errors.New("transport not joined")
)

type CredentialErrorCode string

const (
	CredentialUnconfigured     CredentialErrorCode = "unconfigured"
	CredentialUpstreamRejected CredentialErrorCode = "upstream_rejected"
	CredentialNetworkFailure   CredentialErrorCode = "network_failure"
)

type CredentialError struct {
	Code    CredentialErrorCode
	Message string
	Err     error
}

func (e *CredentialError) Error() string {
	msg := "credential " + string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error   { return e.Err }
func (e *CredentialError) Transient() bool { return e.Code == CredentialNetworkFailure }

type RoomErrorCode string

const (
	RoomCredentialExpired RoomErrorCode = "credential_expired"
	RoomCreationRejected  RoomErrorCode = "creation_rejected"
	RoomNotFound          RoomErrorCode = "not_found"
	// RoomUnavailable is a transport level failure or timeout while provisioning.
	RoomUnavailable RoomErrorCode = "unavailable"
)

type RoomError struct {
	Code    RoomErrorCode
	Message string
	Err     error
}

func (e *RoomError) Error() string {
	msg := "room " + string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RoomError) Unwrap() error   { return e.Err }
func (e *RoomError) Transient() bool { return e.Code == RoomUnavailable }

type DeviceErrorCode string

const (
	DeviceNoDevicesFound   DeviceErrorCode = "no_devices_found"
	DevicePermissionDenied DeviceErrorCode = "permission_denied"
	DeviceProbeFailed      DeviceErrorCode = "probe_failed"
)

type DeviceError struct {
	Code     DeviceErrorCode
	Guidance string
	Err      error
}

func (e *DeviceError) Error() string {
	msg := "device " + string(e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Fatal is false only for a permission refusal with devices present.
func (e *DeviceError) Fatal() bool { return e.Code != DevicePermissionDenied }

// BindingError is scoped to one (participant, kind) pair and never ends the session.
type BindingError struct {
	ParticipantID domain.ParticipantID
	Kind          domain.TrackKind
	Err           error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("bind %s/%s: %v", e.ParticipantID, e.Kind, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// TransportError comes from the real-time engine.
type TransportError struct {
	Op    string
	Fatal bool
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transient reports whether err is worth an automatic retry.
func Transient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

package device

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/core/mock"
	"github.com/dkeye/Consult/internal/domain"
)

func deviceCode(t *testing.T, err error) core.DeviceErrorCode {
	t.Helper()
	var de *core.DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("error %v is not a DeviceError", err)
	}
	return de.Code
}

func TestCheckGranted(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mock.NewMockDeviceProber(ctrl)
	lease := mock.NewMockDeviceLease(ctrl)

	gomock.InOrder(
		prober.EXPECT().Enumerate(gomock.Any()).Return([]core.DeviceInfo{
			{ID: "cam0", Kind: domain.TrackVideo},
			{ID: "mic0", Kind: domain.TrackAudio},
		}, nil),
		prober.EXPECT().Request(gomock.Any(), []domain.TrackKind{domain.TrackAudio, domain.TrackVideo}).Return(lease, nil),
		lease.EXPECT().Release().Times(1),
	)

	rep, err := NewGuard(prober).Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !rep.HasCamera || !rep.HasMicrophone || !rep.PermissionGranted {
		t.Errorf("report = %+v", rep)
	}
}

func TestCheckRequestsOnlyPresentKinds(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mock.NewMockDeviceProber(ctrl)
	lease := mock.NewMockDeviceLease(ctrl)

	prober.EXPECT().Enumerate(gomock.Any()).Return([]core.DeviceInfo{{ID: "mic0", Kind: domain.TrackAudio}}, nil)
	prober.EXPECT().Request(gomock.Any(), []domain.TrackKind{domain.TrackAudio}).Return(lease, nil)
	lease.EXPECT().Release()

	rep, err := NewGuard(prober).Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.HasCamera || !rep.HasMicrophone {
		t.Errorf("report = %+v", rep)
	}
}

func TestCheckNoDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mock.NewMockDeviceProber(ctrl)
	prober.EXPECT().Enumerate(gomock.Any()).Return(nil, nil)

	_, err := NewGuard(prober).Check(context.Background())
	if c := deviceCode(t, err); c != core.DeviceNoDevicesFound {
		t.Fatalf("code = %s", c)
	}
	var de *core.DeviceError
	errors.As(err, &de)
	if !de.Fatal() {
		t.Error("no devices must be fatal")
	}
}

func TestCheckPermissionDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mock.NewMockDeviceProber(ctrl)
	prober.EXPECT().Enumerate(gomock.Any()).Return([]core.DeviceInfo{{ID: "cam0", Kind: domain.TrackVideo}}, nil)
	prober.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, core.ErrPermissionDenied)

	rep, err := NewGuard(prober).Check(context.Background())
	if c := deviceCode(t, err); c != core.DevicePermissionDenied {
		t.Fatalf("code = %s", c)
	}
	var de *core.DeviceError
	errors.As(err, &de)
	if de.Fatal() {
		t.Error("permission denied must not be fatal")
	}
	if !rep.HasCamera || rep.PermissionGranted || rep.Guidance == "" {
		t.Errorf("report = %+v", rep)
	}
}

func TestCheckProbeFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mock.NewMockDeviceProber(ctrl)
	prober.EXPECT().Enumerate(gomock.Any()).Return(nil, errors.New("bus error"))

	_, err := NewGuard(prober).Check(context.Background())
	if c := deviceCode(t, err); c != core.DeviceProbeFailed {
		t.Fatalf("code = %s", c)
	}
}

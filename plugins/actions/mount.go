package actions

import (
	"context"
	"fmt"

	"github.com/bigskies-observatory/opsd/internal/engines/ascom"
	"github.com/bigskies-observatory/opsd/internal/models"
)

// MountStatus is the subset of telescope state the actions in this module
// need to make decisions, trimmed from ascom.Client.GetTelescopeStatus's
// full models.TelescopeStatus.
type MountStatus struct {
	Connected bool
	Tracking  bool
	Slewing   bool
	AtPark    bool
}

// MountDriver is the hardware seam the actions in this module drive. It
// intentionally knows nothing about schedules or the dome — only about one
// physical mount.
type MountDriver interface {
	Status(ctx context.Context) (MountStatus, error)
	SlewToCoordinates(ctx context.Context, raHours, decDegrees float64) error
	SetTracking(ctx context.Context, tracking bool) error
	AbortSlew(ctx context.Context) error
	Park(ctx context.Context) error
	Unpark(ctx context.Context) error
}

// alpacaMount adapts ascom.Client to MountDriver for one configured device.
type alpacaMount struct {
	client *ascom.Client
	device *models.AlpacaDevice
}

// NewAlpacaMount builds a MountDriver backed by an ASCOM Alpaca telescope
// device reachable at serverURL.
func NewAlpacaMount(client *ascom.Client, serverURL string, deviceNumber int) MountDriver {
	return &alpacaMount{
		client: client,
		device: &models.AlpacaDevice{
			DeviceType:   "telescope",
			DeviceNumber: deviceNumber,
			ServerURL:    serverURL,
		},
	}
}

func (m *alpacaMount) Status(ctx context.Context) (MountStatus, error) {
	status, err := m.client.GetTelescopeStatus(ctx, m.device)
	if err != nil {
		return MountStatus{}, fmt.Errorf("querying mount status: %w", err)
	}
	return MountStatus{
		Connected: status.Connected,
		Tracking:  status.Tracking,
		Slewing:   status.Slewing,
		AtPark:    status.AtPark,
	}, nil
}

func (m *alpacaMount) SlewToCoordinates(ctx context.Context, raHours, decDegrees float64) error {
	return m.client.SlewToCoordinates(ctx, m.device, raHours, decDegrees)
}

func (m *alpacaMount) SetTracking(ctx context.Context, tracking bool) error {
	return m.client.SetTracking(ctx, m.device, tracking)
}

func (m *alpacaMount) AbortSlew(ctx context.Context) error {
	return m.client.AbortSlew(ctx, m.device)
}

func (m *alpacaMount) Park(ctx context.Context) error {
	return m.client.Park(ctx, m.device)
}

func (m *alpacaMount) Unpark(ctx context.Context) error {
	return m.client.Unpark(ctx, m.device)
}

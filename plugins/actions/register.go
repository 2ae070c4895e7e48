package actions

import (
	"github.com/bigskies-observatory/opsd/internal/engines/ascom"
	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"go.uber.org/zap"
)

// defaultMountServerURL/defaultMountDeviceNumber name this module's one
// mount, the same way the reference's per-site action packages hardcode
// their site's Pyro4 daemon name rather than taking it from schedule config.
const (
	defaultMountServerURL    = "http://localhost:11111"
	defaultMountDeviceNumber = 0
)

var sharedMount = NewAlpacaMount(ascom.NewClient(zap.NewNop()), defaultMountServerURL, defaultMountDeviceNumber)

func init() {
	logger := zap.NewNop()
	opsconfig.RegisterActionModule(ModuleName, map[string]opsmodel.ActionFactory{
		"ObserveTimeSeries": &observeTimeSeriesFactory{mount: sharedMount, logger: logger},
		"SkyFlats":          &skyFlatsFactory{mount: sharedMount, logger: logger},
	})
}

// NewSiteParkFactory builds the ActionFactory the telescope worker uses for
// its internal auto-park fallback, sharing this module's mount connection.
func NewSiteParkFactory(logger *zap.Logger) opsmodel.ActionFactory {
	return NewParkFactory(sharedMount, logger)
}

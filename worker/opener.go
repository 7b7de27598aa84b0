package worker

import (
	"fmt"
	"io"
	"strings"

	"github.com/nci/terrain/utils"
	"github.com/nci/terrain/worker/gdalprocess"
	"github.com/nci/terrain/worker/gdalservice"
)

// NewOpener returns the raster opener for the configured provider. The
// returned closer releases provider resources and may be nil.
func NewOpener(cfg utils.RasterConfig) (utils.RasterOpener, io.Closer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gdal":
		return gdalprocess.Opener{ComputeExtents: cfg.ComputeExtents}, nil, nil
	case "ascii":
		return utils.ASCIIGridOpener{}, nil, nil
	case "remote":
		if len(cfg.Address) == 0 {
			return nil, nil, fmt.Errorf("remote raster provider requires an address")
		}
		o, err := gdalservice.NewRemoteOpener(cfg.Address, cfg.MaxGrpcRecvMsgSize)
		if err != nil {
			return nil, nil, err
		}
		return o, o, nil
	default:
		return nil, nil, fmt.Errorf("unknown raster provider: %s", cfg.Provider)
	}
}

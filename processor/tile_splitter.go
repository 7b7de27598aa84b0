package processor

import (
	"context"
	"fmt"
)

// SplitTiles partitions a width x height raster into row-major blocks
// of at most tileWidth x tileHeight pixels. The blocks cover the raster
// exactly once.
func SplitTiles(width, height, tileWidth, tileHeight int) ([]TileWindow, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}
	if tileWidth < 1 || tileHeight < 1 {
		return nil, fmt.Errorf("invalid tile size %dx%d", tileWidth, tileHeight)
	}

	xBlocks := (width + tileWidth - 1) / tileWidth
	yBlocks := (height + tileHeight - 1) / tileHeight
	out := make([]TileWindow, 0, xBlocks*yBlocks)

	for yb := 0; yb < yBlocks; yb++ {
		offY := yb * tileHeight
		h := tileHeight
		if offY+h > height {
			h = height - offY
		}
		for xb := 0; xb < xBlocks; xb++ {
			offX := xb * tileWidth
			w := tileWidth
			if offX+w > width {
				w = width - offX
			}
			out = append(out, TileWindow{XBlock: xb, YBlock: yb, OffX: offX, OffY: offY, Width: w, Height: h})
		}
	}
	return out, nil
}

type TileSplitter struct {
	Context context.Context
	Windows []TileWindow
	Out     chan TileWindow
}

func NewTileSplitter(ctx context.Context, windows []TileWindow) *TileSplitter {
	return &TileSplitter{
		Context: ctx,
		Windows: windows,
		Out:     make(chan TileWindow, 100),
	}
}

func (s *TileSplitter) Run() {
	defer close(s.Out)
	for _, w := range s.Windows {
		select {
		case <-s.Context.Done():
			return
		case s.Out <- w:
		}
	}
}

package processor

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/nci/gomemcache/memcache"
	"github.com/nci/terrain/utils"
)

type gridStore interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
}

// GridCache keeps decimated grids in memcached keyed by raster path and
// stride. The cache is best effort: failures are logged and treated as
// misses.
type GridCache struct {
	Client     gridStore
	Expiration int32
	Verbose    bool
}

// NewGridCache connects lazily to a comma separated list of memcached
// servers.
func NewGridCache(servers string, expiration int32, verbose bool) *GridCache {
	return &GridCache{
		Client:     memcache.New(strings.Split(servers, ",")...),
		Expiration: expiration,
		Verbose:    verbose,
	}
}

func GridCacheKey(path string, stride int) string {
	buff := md5.Sum([]byte(fmt.Sprintf("%s:%d", path, stride)))
	return "grid:" + hex.EncodeToString(buff[:])
}

func (c *GridCache) Get(path string, stride int) (*ElevationGrid, bool) {
	key := GridCacheKey(path, stride)
	item, err := c.Client.Get(key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			log.Printf("grid cache: get %s: %v", path, err)
		}
		return nil, false
	}

	grid, err := DecodeGrid(item.Value)
	if err != nil {
		log.Printf("grid cache: corrupt entry for %s: %v", path, err)
		return nil, false
	}
	if c.Verbose {
		log.Printf("grid cache: hit %s stride %d", path, stride)
	}
	return grid, true
}

func (c *GridCache) Put(path string, stride int, grid *ElevationGrid) {
	value, err := EncodeGrid(grid)
	if err != nil {
		log.Printf("grid cache: encode %s: %v", path, err)
		return
	}

	err = c.Client.Set(&memcache.Item{Key: GridCacheKey(path, stride), Value: value, Expiration: c.Expiration})
	if err != nil {
		log.Printf("grid cache: set %s: %v", path, err)
	}
}

type gridHeader struct {
	Width, Height uint32
	Min, Max      float64
}

// EncodeGrid serialises a grid as a little endian header followed by
// the samples, zstd compressed.
func EncodeGrid(grid *ElevationGrid) ([]byte, error) {
	var raw bytes.Buffer
	hdr := gridHeader{
		Width:  uint32(grid.Width),
		Height: uint32(grid.Height),
		Min:    grid.Extents.Min,
		Max:    grid.Extents.Max,
	}
	if err := binary.Write(&raw, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if err := binary.Write(&raw, binary.LittleEndian, grid.Samples); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	enc, err := zstd.NewWriter(&out)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw.Bytes()); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func DecodeGrid(value []byte) (*ElevationGrid, error) {
	dec, err := zstd.NewReader(bytes.NewReader(value))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var hdr gridHeader
	if err := binary.Read(dec, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Width == 0 || hdr.Height == 0 || uint64(hdr.Width)*uint64(hdr.Height) > 1<<31 {
		return nil, fmt.Errorf("invalid grid size %dx%d", hdr.Width, hdr.Height)
	}

	grid, err := NewElevationGrid(int(hdr.Width), int(hdr.Height), utils.Extents{Min: hdr.Min, Max: hdr.Max})
	if err != nil {
		return nil, err
	}
	if err := binary.Read(dec, binary.LittleEndian, grid.Samples); err != nil {
		return nil, err
	}
	return grid, nil
}

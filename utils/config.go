package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
)

const DefaultRecvMsgSize = 10 * 1024 * 1024

// RasterConfig selects the raster provider. Provider is one of "gdal",
// "ascii" or "remote"; Address is the gRPC raster server for "remote".
type RasterConfig struct {
	Provider           string `json:"provider" yaml:"provider" toml:"provider"`
	Address            string `json:"address" yaml:"address" toml:"address"`
	ComputeExtents     bool   `json:"compute_extents" yaml:"compute_extents" toml:"compute_extents"`
	MaxGrpcRecvMsgSize int    `json:"max_recv_msg_size" yaml:"max_recv_msg_size" toml:"max_recv_msg_size"`
}

type DecimateConfig struct {
	Stride      int `json:"stride" yaml:"stride" toml:"stride"`
	Concurrency int `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
}

// MeshConfig is the planar output square and the vertical exaggeration.
type MeshConfig struct {
	XMin  float64 `json:"x_min" yaml:"x_min" toml:"x_min"`
	XMax  float64 `json:"x_max" yaml:"x_max" toml:"x_max"`
	YMin  float64 `json:"y_min" yaml:"y_min" toml:"y_min"`
	YMax  float64 `json:"y_max" yaml:"y_max" toml:"y_max"`
	Scale float64 `json:"scale" yaml:"scale" toml:"scale"`
}

type CameraConfig struct {
	Distance     float64 `json:"distance" yaml:"distance" toml:"distance"`
	Tilt         float64 `json:"tilt" yaml:"tilt" toml:"tilt"`
	FOV          float64 `json:"fov" yaml:"fov" toml:"fov"`
	ShutterOpen  float64 `json:"shutter_open" yaml:"shutter_open" toml:"shutter_open"`
	ShutterClose float64 `json:"shutter_close" yaml:"shutter_close" toml:"shutter_close"`
}

type AnimationConfig struct {
	Frames            int     `json:"frames" yaml:"frames" toml:"frames"`
	RotationIncrement float64 `json:"rotation_increment" yaml:"rotation_increment" toml:"rotation_increment"`
	AngleExpression   string  `json:"angle_expression" yaml:"angle_expression" toml:"angle_expression"`
	Width             int     `json:"width" yaml:"width" toml:"width"`
	Height            int     `json:"height" yaml:"height" toml:"height"`
	Format            string  `json:"format" yaml:"format" toml:"format"`
	Quality           int     `json:"quality" yaml:"quality" toml:"quality"`
	OutputDir         string  `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	// Emitter is "rib" or "preview".
	Emitter  string       `json:"emitter" yaml:"emitter" toml:"emitter"`
	Renderer string       `json:"renderer" yaml:"renderer" toml:"renderer"`
	Camera   CameraConfig `json:"camera" yaml:"camera" toml:"camera"`
	Colour   [3]float64   `json:"colour" yaml:"colour" toml:"colour"`
}

// Increment returns the per-frame rotation in degrees.
func (a AnimationConfig) Increment() float64 {
	if a.RotationIncrement > 0 {
		return a.RotationIncrement
	}
	return 360.0 / float64(a.Frames)
}

type TilerConfig struct {
	TileWidth   int    `json:"tile_width" yaml:"tile_width" toml:"tile_width"`
	TileHeight  int    `json:"tile_height" yaml:"tile_height" toml:"tile_height"`
	Concurrency int    `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	IndexDSN    string `json:"index_dsn" yaml:"index_dsn" toml:"index_dsn"`
}

type CacheConfig struct {
	Memcache string `json:"memcache" yaml:"memcache" toml:"memcache"`
	// Expiration in seconds, 0 keeps items until evicted.
	Expiration int32 `json:"expiration" yaml:"expiration" toml:"expiration"`
}

type MetricsConfig struct {
	LogDir         string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
	MaxLogFileSize int64  `json:"max_log_file_size" yaml:"max_log_file_size" toml:"max_log_file_size"`
	MaxLogFiles    int    `json:"max_log_files" yaml:"max_log_files" toml:"max_log_files"`
}

// Config holds the settings shared by the hmrender, pngtiler and
// raster-server executables.
type Config struct {
	Raster    RasterConfig    `json:"raster" yaml:"raster" toml:"raster"`
	Decimate  DecimateConfig  `json:"decimate" yaml:"decimate" toml:"decimate"`
	Mesh      MeshConfig      `json:"mesh" yaml:"mesh" toml:"mesh"`
	Animation AnimationConfig `json:"animation" yaml:"animation" toml:"animation"`
	Tiler     TilerConfig     `json:"tiler" yaml:"tiler" toml:"tiler"`
	Cache     CacheConfig     `json:"cache" yaml:"cache" toml:"cache"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics" toml:"metrics"`
	Verbose   bool            `json:"verbose" yaml:"verbose" toml:"verbose"`
}

// DefaultConfig reproduces the settings the NED tools were written for:
// 10812x10812 rasters sampled every 8th point into a 200x200 square.
func DefaultConfig() *Config {
	return &Config{
		Raster: RasterConfig{
			Provider:           "gdal",
			MaxGrpcRecvMsgSize: DefaultRecvMsgSize,
		},
		Decimate: DecimateConfig{Stride: 8, Concurrency: 4},
		Mesh:     MeshConfig{XMin: -100, XMax: 100, YMin: -100, YMax: 100, Scale: 25},
		Animation: AnimationConfig{
			Frames:    36,
			Width:     512,
			Height:    512,
			Format:    "jpeg",
			Quality:   90,
			OutputDir: "output",
			Emitter:   "rib",
			Camera: CameraConfig{
				Distance:     100,
				Tilt:         45,
				FOV:          90,
				ShutterOpen:  0.1,
				ShutterClose: 0.9,
			},
			Colour: [3]float64{0.8, 1.0, 0.8},
		},
		Tiler: TilerConfig{TileWidth: 512, TileHeight: 512, Concurrency: 4},
	}
}

// LoadConfig returns the defaults overlaid with configFile. An empty
// path returns the defaults.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()
	if len(configFile) == 0 {
		return config, nil
	}
	if err := config.LoadConfigFile(configFile); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigFile decodes configFile over the current values. The format
// follows the file extension: .yaml/.yml, .toml or .json.
func (config *Config) LoadConfigFile(configFile string) error {
	ext := strings.ToLower(filepath.Ext(configFile))
	if ext == ".toml" {
		if _, err := toml.DecodeFile(configFile, config); err != nil {
			return fmt.Errorf("Error at TOML parsing config document: %s. Error: %v", configFile, err)
		}
		return config.Validate()
	}

	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
		}
	case ".json":
		err = json.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
		}
	default:
		return fmt.Errorf("Unknown config file format: %s", configFile)
	}

	return config.Validate()
}

func (config *Config) Validate() error {
	if config.Decimate.Stride < 1 {
		return fmt.Errorf("decimate stride must be positive: %d", config.Decimate.Stride)
	}
	if config.Decimate.Concurrency < 1 {
		config.Decimate.Concurrency = 1
	}
	if config.Mesh.XMax <= config.Mesh.XMin || config.Mesh.YMax <= config.Mesh.YMin {
		return fmt.Errorf("empty mesh output range: x [%v,%v] y [%v,%v]", config.Mesh.XMin, config.Mesh.XMax, config.Mesh.YMin, config.Mesh.YMax)
	}
	if config.Animation.Frames < 1 {
		return fmt.Errorf("animation frames must be positive: %d", config.Animation.Frames)
	}
	if config.Animation.Width < 1 || config.Animation.Height < 1 {
		return fmt.Errorf("invalid animation output size: %dx%d", config.Animation.Width, config.Animation.Height)
	}
	if config.Tiler.TileWidth < 1 || config.Tiler.TileHeight < 1 {
		return fmt.Errorf("invalid tile size: %dx%d", config.Tiler.TileWidth, config.Tiler.TileHeight)
	}
	if config.Tiler.Concurrency < 1 {
		config.Tiler.Concurrency = 1
	}
	if config.Raster.MaxGrpcRecvMsgSize <= 0 {
		config.Raster.MaxGrpcRecvMsgSize = DefaultRecvMsgSize
	}
	switch config.Raster.Provider {
	case "gdal", "ascii":
	case "remote":
		if len(config.Raster.Address) == 0 {
			return fmt.Errorf("remote raster provider requires an address")
		}
	default:
		return fmt.Errorf("unknown raster provider: %s", config.Raster.Provider)
	}
	return nil
}

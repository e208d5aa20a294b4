package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/texstream/engine/core"
	"github.com/spaghettifunk/texstream/engine/renderer"
	"github.com/spaghettifunk/texstream/engine/systems"
	"github.com/spaghettifunk/texstream/engine/textures"
)

// DeviceConfig describes the limits of the device textures are loaded into.
type DeviceConfig struct {
	MaxTextureDimension uint32 `toml:"max_texture_dimension"`
	MaxVolumeDimension  uint32 `toml:"max_volume_dimension"`
	PowerOfTwoOnly      bool   `toml:"power_of_two_only"`
	SquareOnly          bool   `toml:"square_only"`
}

func (c DeviceConfig) Limits() renderer.Limits {
	return renderer.Limits{
		MaxTextureDimension: c.MaxTextureDimension,
		MaxVolumeDimension:  c.MaxVolumeDimension,
		PowerOfTwoOnly:      c.PowerOfTwoOnly,
		SquareOnly:          c.SquareOnly,
	}
}

type ApplicationConfig struct {
	// The application name, used as the log prefix.
	Name     string        `toml:"name"`
	LogLevel core.LogLevel `toml:"log_level"`
	// Directory watched for texture assets, relative to the working directory.
	AssetsDir string `toml:"assets_dir"`
	TargetFPS uint32 `toml:"target_fps"`
	// Address serving prometheus metrics, e.g. ":9102". Empty disables it.
	MetricsAddress string                      `toml:"metrics_address"`
	Device         DeviceConfig                `toml:"device"`
	Loader         textures.LoaderConfig       `toml:"loader"`
	Textures       systems.TextureSystemConfig `toml:"textures"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	limits := renderer.DefaultLimits()
	return &ApplicationConfig{
		Name:      "texstream",
		LogLevel:  core.InfoLevel,
		AssetsDir: "assets",
		TargetFPS: 60,
		Device: DeviceConfig{
			MaxTextureDimension: limits.MaxTextureDimension,
			MaxVolumeDimension:  limits.MaxVolumeDimension,
			PowerOfTwoOnly:      limits.PowerOfTwoOnly,
			SquareOnly:          limits.SquareOnly,
		},
		Loader: textures.DefaultLoaderConfig(),
		Textures: systems.TextureSystemConfig{
			MaxTextureCount: 1024,
		},
	}
}

// LoadApplicationConfig reads a TOML file on top of the defaults. A missing
// file is an error; missing keys keep their default value.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	config := DefaultApplicationConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if _, err := core.ParseLogLevel(string(c.LogLevel)); err != nil {
		return err
	}
	if c.TargetFPS == 0 {
		return fmt.Errorf("target_fps must be positive")
	}
	if c.Device.MaxTextureDimension == 0 || c.Device.MaxVolumeDimension == 0 {
		return fmt.Errorf("device texture dimensions must be positive")
	}
	if c.Textures.MaxTextureCount == 0 {
		return fmt.Errorf("textures: max_texture_count must be positive")
	}
	return c.Loader.Validate()
}

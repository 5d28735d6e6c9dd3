// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"webcam-shutter/pkg/camera"
	"webcam-shutter/pkg/storage/consts"
)

type Config struct {
	LogLevel  string         `yaml:"log_level"`
	NTPServer string         `yaml:"ntp_server"` // empty disables clock correction
	Device    DeviceConfig   `yaml:"device"`
	Output    OutputConfig   `yaml:"output"`
	HTTP      HTTPConfig     `yaml:"http"`
	Schedule  ScheduleConfig `yaml:"schedule"`
}

type DeviceConfig struct {
	Path      string           `yaml:"path"`
	Width     int              `yaml:"width"`
	Height    int              `yaml:"height"`
	Buffers   int              `yaml:"buffers"`
	Timeout   time.Duration    `yaml:"timeout"`
	EmptyRead string           `yaml:"empty_read"` // retry, skip
	Controls  map[uint32]int32 `yaml:"controls"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	Ext string `yaml:"ext"`
	// Quality re-encodes frames at this JPEG quality; 0 keeps the camera's bytes.
	Quality   int `yaml:"quality"`
	ThumbSize int `yaml:"thumb_size"`
}

type HTTPConfig struct {
	Port       int `yaml:"port"`
	WebdavPort int `yaml:"webdav_port"`
}

// ScheduleConfig drives timelapse shots. A zero interval disables them.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
	Count    int           `yaml:"count"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Path:    camera.DefaultDevice,
			Width:   640,
			Height:  480,
			Buffers: camera.DefaultBufferCount,
			Timeout: camera.DefaultTimeout,
		},
		Output: OutputConfig{
			Dir:       ".",
			Ext:       consts.DefaultImageExt,
			ThumbSize: 160,
		},
		HTTP: HTTPConfig{
			Port:       9999,
			WebdavPort: 9998,
		},
		Schedule: ScheduleConfig{
			Count: 1,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func Validate(cfg *Config) error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	d := cfg.Device
	if d.Path == "" {
		return fmt.Errorf("device.path is required")
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("device size %dx%d must be positive", d.Width, d.Height)
	}
	if d.Buffers < camera.MinBufferCount {
		return fmt.Errorf("device.buffers must be at least %d", camera.MinBufferCount)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("device.timeout must be positive")
	}
	if _, err := camera.ParseEmptyReadPolicy(d.EmptyRead); err != nil {
		return fmt.Errorf("device.empty_read: %w", err)
	}

	o := cfg.Output
	if o.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("output.quality %d out of range 0-100", o.Quality)
	}
	if o.ThumbSize <= 0 {
		return fmt.Errorf("output.thumb_size must be positive")
	}

	for name, port := range map[string]int{"http.port": cfg.HTTP.Port, "http.webdav_port": cfg.HTTP.WebdavPort} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s %d out of range", name, port)
		}
	}
	if cfg.HTTP.Port == cfg.HTTP.WebdavPort {
		return fmt.Errorf("http.port and http.webdav_port are both %d", cfg.HTTP.Port)
	}

	s := cfg.Schedule
	if s.Interval != 0 && s.Interval < consts.MinInterval {
		return fmt.Errorf("schedule.interval %s less than %s", s.Interval, consts.MinInterval)
	}
	if s.Count < 1 {
		return fmt.Errorf("schedule.count must be at least 1")
	}

	return nil
}

// CameraOptions turns the device section into session options.
func (c *Config) CameraOptions() []camera.Option {
	// Validate has checked the policy
	policy, _ := camera.ParseEmptyReadPolicy(c.Device.EmptyRead)
	opts := []camera.Option{
		camera.WithBufferCount(uint32(c.Device.Buffers)),
		camera.WithTimeout(c.Device.Timeout),
		camera.WithEmptyReadPolicy(policy),
	}
	if len(c.Device.Controls) > 0 {
		opts = append(opts, camera.WithControls(c.Device.Controls))
	}
	return opts
}

// Package config 加载 vecasm 的配置
//
// 优先级（从低到高）：默认值、配置文件（TOML）、环境变量、命令行参数。
package config

import (
	"errors"
	"fmt"

	"github.com/mstoykov/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
	"github.com/tangzhangming/vecasm/internal/ptrcompr"
)

// ConfigFileName 默认配置文件名
const ConfigFileName = "vecasm.toml"

// Config 配置
type Config struct {
	// Target 目标模式：x64 或 ia32
	Target string `toml:"target" envconfig:"VECASM_TARGET"`

	// Features CPU 特性：auto、baseline 或逗号分隔的列表（如 "avx,sse4.1"）
	Features string `toml:"features" envconfig:"VECASM_FEATURES"`

	// Checked 是否执行调试断言
	Checked bool `toml:"checked" envconfig:"VECASM_CHECKED"`

	Log  LogConfig  `toml:"log"`
	Cage CageConfig `toml:"cage"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `toml:"level" envconfig:"VECASM_LOG_LEVEL"`
	Development bool   `toml:"development" envconfig:"VECASM_LOG_DEVELOPMENT"`
}

// CageConfig 指针压缩笼子
type CageConfig struct {
	HeapBase  uint64 `toml:"heap_base" envconfig:"VECASM_CAGE_HEAP_BASE"`
	CodeBase  uint64 `toml:"code_base" envconfig:"VECASM_CAGE_CODE_BASE"`
	CodeStart uint64 `toml:"code_start" envconfig:"VECASM_CAGE_CODE_START"`
	CodeSize  uint64 `toml:"code_size" envconfig:"VECASM_CAGE_CODE_SIZE"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Target:   "x64",
		Features: "auto",
		Checked:  true,
		Log: LogConfig{
			Level: "info",
		},
		Cage: CageConfig{
			HeapBase:  0x0000_4200_0000_0000,
			CodeBase:  0x0000_0007_FFFF_0000,
			CodeStart: 0x0000_0007_FFFF_0000,
			CodeSize:  128 << 20,
		},
	}
}

// Load 按默认值、文件、环境变量的顺序加载配置。path 为空时跳过文件。
func Load(fs afero.Fs, path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := envconfig.Process("", cfg, lookup); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// Save 保存配置到文件
func (c *Config) Save(fs afero.Fs, path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ErrInvalid 配置校验失败
var ErrInvalid = errors.New("invalid config")

// Validate 校验全部字段，返回合并后的错误
func (c *Config) Validate() error {
	var errs error
	if _, err := c.Mode(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := cpu.ParseList(c.Features); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log level: %w", err))
	}
	if _, err := c.HeapCage(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.CodeCage(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, errs)
	}
	return nil
}

// Mode 目标模式
func (c *Config) Mode() (platform.Mode, error) {
	return platform.ParseMode(c.Target)
}

// CPUFeatures 解析特性列表（auto 时探测本机）
func (c *Config) CPUFeatures() (cpu.Features, error) {
	return cpu.ParseList(c.Features)
}

// HeapCage 由配置创建堆笼子
func (c *Config) HeapCage() (*ptrcompr.HeapCage, error) {
	return ptrcompr.NewHeapCage(ptrcompr.Address(c.Cage.HeapBase))
}

// CodeCage 由配置创建外部代码笼子
func (c *Config) CodeCage() (*ptrcompr.ExternalCodeCage, error) {
	return ptrcompr.NewExternalCodeCage(
		ptrcompr.Address(c.Cage.CodeBase),
		ptrcompr.Address(c.Cage.CodeStart),
		c.Cage.CodeSize,
	)
}

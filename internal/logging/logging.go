// Package logging 创建命令行使用的 zap 日志器
//
// 发射器本身从不记录日志，只有命令层记录。
// 设置 VECASM_DEBUG=1 时强制开启调试级别。
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/vecasm/internal/config"
)

// DebugEnv 调试开关
const DebugEnv = "VECASM_DEBUG"

// DebugEnabled 判断开关值是否表示开启
func DebugEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on":
		return true
	}
	return false
}

// New 根据配置创建日志器，输出到 w。lookup 用于读取 DebugEnv，可以为 nil。
func New(cfg config.LogConfig, w io.Writer, lookup func(string) (string, bool)) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if lookup != nil {
		if v, ok := lookup(DebugEnv); ok && DebugEnabled(v) {
			level = zapcore.DebugLevel
		}
	}

	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	if cfg.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(w))}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

// Nop 不输出任何内容的日志器
func Nop() *zap.Logger { return zap.NewNop() }

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ogurasousui/worker-lifecycle/internal/platform/config"
)

// TimestampFormat はミリ秒とタイムゾーンを含むソート可能な時刻書式です。
const TimestampFormat = "2006-01-02T15:04:05.999Z07:00"

// New は設定に従って logrus.Logger を生成します。出力先は標準エラーです。
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput は出力先を指定して logrus.Logger を生成します。
func NewWithOutput(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	return logger, nil
}

// Discard は何も出力しないロガーを返します。
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

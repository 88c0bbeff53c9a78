// Package logging はlogrusによる構造化ロガーを生成する。
//
// すべてのログはJSON形式で出力され、serviceフィールドを持つ。
// LOG_FILEが指定された場合はlumberjackでローテーションしながらファイルにも書き出す。
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields はログの構造化フィールド。
type Fields = logrus.Fields

// Options はロガーの設定。
type Options struct {
	// Level はログレベル（debug, info, warn, error）。
	Level string
	// File はログファイルのパス。空の場合は標準エラー出力のみ。
	File string
	// MaxSizeMB はローテーションするファイルサイズ（MB）。
	MaxSizeMB int
	// MaxBackups は保持する古いファイル数。
	MaxBackups int
}

// New はサービス名を付与したロガーを生成する。
func New(service string, opts Options) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(ParseLevel(opts.Level))

	var out io.Writer = os.Stderr
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	return logger.WithField("service", service)
}

// ParseLevel は文字列をログレベルに変換する。未知の値はinfoになる。
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard はテスト用に出力を捨てるロガーを返す。
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

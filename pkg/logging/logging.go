// Package logging adapts structured loggers to portal.Logger.
package logging

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/rs/zerolog"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// Zerolog implements portal.Logger on top of a zerolog.Logger.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog wraps logger.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

// NewConsole creates a zerolog console logger writing to out at level
// ("debug", "info", "warn" or "error"; anything else is info). With json
// the output is one JSON object per line.
func NewConsole(out io.Writer, level string, json bool) *Zerolog {
	if out == nil {
		out = os.Stderr
	}

	if !json {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}

	logger := zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()

	return NewZerolog(logger)
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *Zerolog) Debug(msg string, fields map[string]interface{}) {
	z.logger.Debug().Fields(fields).Msg(msg)
}

func (z *Zerolog) Info(msg string, fields map[string]interface{}) {
	z.logger.Info().Fields(fields).Msg(msg)
}

func (z *Zerolog) Warn(msg string, fields map[string]interface{}) {
	z.logger.Warn().Fields(fields).Msg(msg)
}

func (z *Zerolog) Error(msg string, fields map[string]interface{}) {
	z.logger.Error().Fields(fields).Msg(msg)
}

// HCLog implements portal.Logger on top of an hclog.Logger.
type HCLog struct {
	logger hclog.Logger
}

// NewHCLog wraps logger.
func NewHCLog(logger hclog.Logger) *HCLog {
	return &HCLog{logger: logger}
}

func (h *HCLog) Debug(msg string, fields map[string]interface{}) {
	h.logger.Debug(msg, keysAndValues(fields)...)
}

func (h *HCLog) Info(msg string, fields map[string]interface{}) {
	h.logger.Info(msg, keysAndValues(fields)...)
}

func (h *HCLog) Warn(msg string, fields map[string]interface{}) {
	h.logger.Warn(msg, keysAndValues(fields)...)
}

func (h *HCLog) Error(msg string, fields map[string]interface{}) {
	h.logger.Error(msg, keysAndValues(fields)...)
}

// keysAndValues flattens fields in key order so that output is stable.
func keysAndValues(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	args := make([]interface{}, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	return args
}

type nop struct{}

// Nop returns a logger that discards everything.
func Nop() portal.Logger {
	return nop{}
}

func (nop) Debug(string, map[string]interface{}) {}
func (nop) Info(string, map[string]interface{})  {}
func (nop) Warn(string, map[string]interface{})  {}
func (nop) Error(string, map[string]interface{}) {}

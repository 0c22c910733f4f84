// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package log wraps zap behind the module-logger convention used throughout
// this codebase: every package holds its own named logger obtained once at
// init time, e.g. `var logger = log.NewModuleLogger(log.Admission)`.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// Module names, one per package that logs. Kept as a closed set so a typo in
// a module name is a compile error, not a silently-mislabeled log line.
const (
	Catalog      = "catalog"
	Provider     = "provider"
	Envelope     = "envelope"
	Admission    = "admission"
	Orchestrator = "orchestrator"
	StatusMapper = "statusmap"
	Monitor      = "monitor"
	Query        = "query"
	Health       = "health"
	HTTPAPI      = "httpapi"
	Config       = "config"
	CMDUtils     = "cmd/utils"
	CMDRefillsvc = "cmd/refillsvc"
)

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func baseLogger() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			// zap's production config only fails to build on an invalid
			// encoder/output sink, which would be a packaging bug, not a
			// runtime condition callers can recover from.
			l = zap.NewNop()
			os.Stderr.WriteString("log: falling back to no-op logger: " + err.Error() + "\n")
		}
		base = l
	})
	return base
}

// Logger is a named, structured logger. Fields are passed as alternating
// key/value pairs, matching the convention of the module logger this type
// was generalized from.
type Logger struct {
	module string
	z      *zap.Logger
}

// NewModuleLogger returns the logger for the given module name.
func NewModuleLogger(module string) *Logger {
	return &Logger{module: module, z: baseLogger().With(zap.String("module", module))}
}

func (l *Logger) fields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.z.Debug(msg, l.fields(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.z.Info(msg, l.fields(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.z.Warn(msg, l.fields(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.z.Error(msg, l.fields(kv)...) }

// Sync flushes any buffered log entries. Call once at process shutdown.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}

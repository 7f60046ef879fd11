/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging holds the verbosity levels and logger constructors used by hotplugd.
package logging

import (
	"io"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels for logr V().
const (
	// DEBUG covers per-decision and per-transition detail.
	DEBUG = 1
	// TRACE covers per-sample detail. Expect one line per poll interval.
	TRACE = 2
)

// Options configures the zap backend. Its BindFlags registers the --zap-* flags.
type Options struct {
	zap.Options
}

// NewLogger builds the process logger with ISO8601 timestamps.
func NewLogger(opts *Options) logr.Logger {
	if opts == nil {
		opts = &Options{}
	}
	return zap.New(
		zap.UseFlagOptions(&opts.Options),
		func(o *zap.Options) {
			if o.TimeEncoder == nil {
				o.TimeEncoder = zapcore.ISO8601TimeEncoder
			}
		},
	)
}

// NewTestLogger returns a development logger writing to w at TRACE verbosity.
func NewTestLogger(w io.Writer) logr.Logger {
	return zap.New(
		zap.UseDevMode(true),
		zap.WriteTo(w),
		zap.Level(zapcore.Level(-TRACE)),
	)
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dm manages device-mapper maps via the dmsetup utility and sysfs.
package dm

import (
	"context"

	"github.com/google/uuid"
	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"
)

// Runner executes an external command and returns its captured output.
type Runner func(ctx context.Context, command string, args ...string) (string, error)

// Options is a set of options for device-mapper operations.
type Options struct {
	// Logger to use for logging.
	Logger *zap.Logger

	// Runner executes external commands.
	Runner Runner

	// UUID for the created map, nil to let device-mapper generate none.
	UUID *uuid.UUID

	// MapperDir is the directory of device-mapper symlinks.
	MapperDir string

	// SysBlockDir is the sysfs block directory.
	SysBlockDir string
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRunner sets the command runner.
func WithRunner(runner Runner) Option {
	return func(o *Options) {
		o.Runner = runner
	}
}

// WithUUID sets the UUID for the created map.
func WithUUID(id uuid.UUID) Option {
	return func(o *Options) {
		o.UUID = pointer.To(id)
	}
}

// WithMapperDir overrides the device-mapper directory.
func WithMapperDir(dir string) Option {
	return func(o *Options) {
		o.MapperDir = dir
	}
}

// WithSysBlockDir overrides the sysfs block directory.
func WithSysBlockDir(dir string) Option {
	return func(o *Options) {
		o.SysBlockDir = dir
	}
}

func defaultRunner(ctx context.Context, command string, args ...string) (string, error) {
	return cmd.RunContext(ctx, command, args...)
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger:      zap.NewNop(),
		Runner:      defaultRunner,
		MapperDir:   "/dev/mapper",
		SysBlockDir: "/sys/block",
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

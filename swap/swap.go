// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package swap provides Linux swap space management on top of the mkswap,
// swapon and swapoff utilities and the kernel /proc/swaps table.
package swap

import (
	"context"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/zap"
)

// Runner executes an external command and returns its captured output.
//
// The default runner shells out via go-cmd; tests substitute a recorder.
type Runner func(ctx context.Context, command string, args ...string) (string, error)

// Options is a set of options for swap operations.
type Options struct {
	// Logger to use for logging.
	Logger *zap.Logger

	// Runner executes external commands.
	Runner Runner

	// Label for the swap space (mkswap -L), empty for none.
	Label string

	// Priority of the activated device (swapon -p), negative for the
	// kernel default.
	Priority int

	// ProcSwaps is the path of the active-swaps table.
	ProcSwaps string

	// DevDir and MapperDir are the device and device-mapper directories.
	DevDir    string
	MapperDir string
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

// WithLabel sets the label for the swap space being formatted.
func WithLabel(label string) Option {
	return func(o *Options) {
		o.Label = label
	}
}

// WithPriority sets the priority of the activated swap device.
func WithPriority(priority int) Option {
	return func(o *Options) {
		o.Priority = priority
	}
}

// WithProcSwaps overrides the path of the active-swaps table.
func WithProcSwaps(path string) Option {
	return func(o *Options) {
		o.ProcSwaps = path
	}
}

// WithDevDir overrides the device directory.
func WithDevDir(dir string) Option {
	return func(o *Options) {
		o.DevDir = dir
	}
}

// WithMapperDir overrides the device-mapper directory.
func WithMapperDir(dir string) Option {
	return func(o *Options) {
		o.MapperDir = dir
	}
}

func defaultRunner(ctx context.Context, command string, args ...string) (string, error) {
	return cmd.RunContext(ctx, command, args...)
}

func applyOptions(opts ...Option) Options {
	o := Options{
		Logger:    zap.NewNop(),
		Runner:    defaultRunner,
		Priority:  -1,
		ProcSwaps: "/proc/swaps",
		DevDir:    "/dev",
		MapperDir: "/dev/mapper",
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

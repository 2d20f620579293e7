// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package swap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
)

// Format creates swap space on a device.
//
// Use WithLabel to set a label for the swap space.
func Format(ctx context.Context, device string, opts ...Option) error {
	options := applyOptions(opts...)

	// -f forces creation on devices mkswap would otherwise refuse,
	// e.g. whole disks with leftover boot sectors.
	args := []string{"-f"}

	if options.Label != "" {
		args = append(args, "-L", options.Label)
	}

	args = append(args, device)

	options.Logger.Debug("formatting swap space", zap.String("device", device), zap.Strings("args", args))

	if _, err := options.Runner(ctx, "mkswap", args...); err != nil {
		return fmt.Errorf("failed to format %s as swap: %w", device, err)
	}

	return nil
}

// On activates a swap device.
//
// The device signature is inspected first, and only the current SWAPSPACE2
// format is activated; legacy, suspended-image and unrecognized signatures
// fail without spawning swapon. Use WithPriority to activate at a fixed
// priority; the default leaves priority assignment to the kernel.
func On(ctx context.Context, device string, opts ...Option) error {
	options := applyOptions(opts...)

	sig, err := readSignature(device)
	if err != nil {
		return err
	}

	if err = classifySignature(sig); err != nil {
		return err
	}

	var args []string

	if options.Priority >= 0 {
		args = append(args, "-p", strconv.Itoa(options.Priority))
	}

	args = append(args, device)

	options.Logger.Debug("activating swap", zap.String("device", device), zap.Strings("args", args))

	if _, err = options.Runner(ctx, "swapon", args...); err != nil {
		return fmt.Errorf("failed to activate swap on %s: %w", device, err)
	}

	return nil
}

// Off deactivates an active swap device.
func Off(ctx context.Context, device string, opts ...Option) error {
	options := applyOptions(opts...)

	options.Logger.Debug("deactivating swap", zap.String("device", device))

	if _, err := options.Runner(ctx, "swapoff", device); err != nil {
		return fmt.Errorf("failed to deactivate swap on %s: %w", device, err)
	}

	return nil
}

// Entry is a single row of the active-swaps table.
type Entry struct {
	// Path of the swap device or file.
	Path string

	// Type of the swap area ("partition" or "file").
	Type string

	// Size and Used are in KiB, as reported by the kernel.
	Size uint64
	Used uint64

	// Priority of the swap area.
	Priority int
}

// List returns the active swap areas by reading /proc/swaps.
func List(opts ...Option) ([]Entry, error) {
	options := applyOptions(opts...)

	data, err := os.ReadFile(options.ProcSwaps)
	if err != nil {
		return nil, fmt.Errorf("failed to read active-swaps table: %w", err)
	}

	return parseSwapsTable(string(data)), nil
}

// parseSwapsTable parses the line-oriented /proc/swaps contents.
//
// The header row (and any row whose first field is not an absolute path)
// is skipped.
func parseSwapsTable(contents string) []Entry {
	var entries []Entry

	for _, line := range strings.Split(contents, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
			continue
		}

		entry := Entry{
			Path: fields[0],
		}

		if len(fields) > 1 {
			entry.Type = fields[1]
		}

		if len(fields) > 2 {
			size, err := strconv.ParseUint(fields[2], 10, 64)
			if err == nil {
				entry.Size = size
			}
		}

		if len(fields) > 3 {
			used, err := strconv.ParseUint(fields[3], 10, 64)
			if err == nil {
				entry.Used = used
			}
		}

		if len(fields) > 4 {
			priority, err := strconv.Atoi(fields[4])
			if err == nil {
				entry.Priority = priority
			}
		}

		entries = append(entries, entry)
	}

	return entries
}

// Status reports whether a device is currently active as swap.
//
// A false result with a nil error means the device is definitely not
// active; a false result with a non-nil error means the state could not
// be determined.
func Status(device string, opts ...Option) (bool, error) {
	options := applyOptions(opts...)

	entries, err := List(opts...)
	if err != nil {
		return false, err
	}

	resolved, err := resolveMapperPath(device, options)
	if err != nil {
		return false, err
	}

	return slices.Contains(xslices.Map(entries, func(e Entry) string { return e.Path }), resolved), nil
}

// resolveMapperPath rewrites a device-mapper symlink path to the real
// device node the kernel reports in /proc/swaps.
func resolveMapperPath(device string, options Options) (string, error) {
	if !strings.HasPrefix(device, options.MapperDir+"/") {
		return device, nil
	}

	target, err := os.Readlink(device)
	if err != nil {
		return "", fmt.Errorf("failed to resolve device-mapper path %s: %w", device, err)
	}

	if rel, ok := strings.CutPrefix(target, "../"); ok {
		return filepath.Join(options.DevDir, rel), nil
	}

	if filepath.IsAbs(target) {
		return target, nil
	}

	return filepath.Join(filepath.Dir(device), target), nil
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package dm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNodeNotFound is returned when no device-mapper node backs a map name.
var ErrNodeNotFound = errors.New("device-mapper node not found")

// CreateLinear creates a linear mapping of the given length (in sectors)
// over the whole of the backing device.
//
// Use WithUUID to assign a UUID to the new map.
func CreateLinear(ctx context.Context, name, device string, sectors uint64, opts ...Option) error {
	options := applyOptions(opts...)

	table := fmt.Sprintf("0 %d linear %s 0", sectors, device)

	args := []string{"create", name}

	if options.UUID != nil {
		args = append(args, "--uuid", options.UUID.String())
	}

	args = append(args, "--table", table)

	options.Logger.Debug("creating linear mapping",
		zap.String("name", name),
		zap.String("table", table),
	)

	if _, err := options.Runner(ctx, "dmsetup", args...); err != nil {
		return fmt.Errorf("failed to create linear mapping %s over %s: %w", name, device, err)
	}

	return nil
}

// Remove removes a device-mapper map by name.
func Remove(ctx context.Context, name string, opts ...Option) error {
	options := applyOptions(opts...)

	options.Logger.Debug("removing mapping", zap.String("name", name))

	if _, err := options.Runner(ctx, "dmsetup", "remove", name); err != nil {
		return fmt.Errorf("failed to remove mapping %s: %w", name, err)
	}

	return nil
}

// NodeFromName returns the kernel device node name (e.g. "dm-3") backing
// a device-mapper map.
func NodeFromName(name string, opts ...Option) (string, error) {
	options := applyOptions(opts...)

	// the /dev/mapper entry is normally a symlink to the real node
	target, err := os.Readlink(filepath.Join(options.MapperDir, name))
	if err == nil {
		return filepath.Base(target), nil
	}

	// udev may be configured to create real device nodes instead of
	// symlinks, fall back to scanning sysfs
	nodes, err := os.ReadDir(options.SysBlockDir)
	if err != nil {
		return "", fmt.Errorf("failed to list block devices: %w", err)
	}

	for _, node := range nodes {
		if !strings.HasPrefix(node.Name(), "dm-") {
			continue
		}

		mapName, err := readMapName(options, node.Name())
		if err != nil {
			continue
		}

		if mapName == name {
			return node.Name(), nil
		}
	}

	return "", fmt.Errorf("%w: no node backs map %q", ErrNodeNotFound, name)
}

// NameFromNode returns the map name providing a kernel device node
// (e.g. "dm-3").
func NameFromNode(node string, opts ...Option) (string, error) {
	options := applyOptions(opts...)

	name, err := readMapName(options, node)
	if err != nil {
		return "", fmt.Errorf("failed to look up map name for node %q: %w", node, err)
	}

	return name, nil
}

func readMapName(options Options, node string) (string, error) {
	data, err := os.ReadFile(filepath.Join(options.SysBlockDir, node, "dm", "name"))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package swap_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vadorovsky/libblockdev/swap"
)

type execCall struct {
	command string
	args    []string
}

func recordRunner(calls *[]execCall) swap.Runner {
	return func(_ context.Context, command string, args ...string) (string, error) {
		*calls = append(*calls, execCall{command: command, args: args})

		return "", nil
	}
}

func failRunner(err error) swap.Runner {
	return func(_ context.Context, _ string, _ ...string) (string, error) {
		return "", err
	}
}

func TestFormat(t *testing.T) {
	for _, test := range []struct {
		name string

		opts []swap.Option

		expectedArgs []string
	}{
		{
			name: "no label",

			expectedArgs: []string{"-f", "/dev/sdq1"},
		},
		{
			name: "with label",

			opts: []swap.Option{swap.WithLabel("fastswap")},

			expectedArgs: []string{"-f", "-L", "fastswap", "/dev/sdq1"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			var calls []execCall

			opts := append([]swap.Option{
				swap.WithRunner(recordRunner(&calls)),
				swap.WithLogger(zaptest.NewLogger(t)),
			}, test.opts...)

			require.NoError(t, swap.Format(context.Background(), "/dev/sdq1", opts...))

			require.Len(t, calls, 1)
			assert.Equal(t, "mkswap", calls[0].command)
			assert.Equal(t, test.expectedArgs, calls[0].args)
		})
	}
}

func TestFormatFailure(t *testing.T) {
	expectedErr := errors.New("mkswap: can't open '/dev/sdq1': No such file or directory")

	err := swap.Format(context.Background(), "/dev/sdq1", swap.WithRunner(failRunner(expectedErr)))
	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
}

// makeSwapImage creates a sparse image whose 10-byte signature region
// holds the given value (zero-padded).
func makeSwapImage(t *testing.T, signature string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "swap.img")

	f, err := os.Create(path)
	require.NoError(t, err)

	sig := make([]byte, 10)
	copy(sig, signature)

	_, err = f.WriteAt(sig, swap.SignatureOffset())
	require.NoError(t, err)

	require.NoError(t, f.Close())

	return path
}

func TestOn(t *testing.T) {
	for _, test := range []struct {
		name string

		signature string
		opts      []swap.Option

		expectedErr  error
		expectedArgs []string
	}{
		{
			name: "current format",

			signature: "SWAPSPACE2",

			expectedArgs: []string{},
		},
		{
			name: "current format with priority",

			signature: "SWAPSPACE2",
			opts:      []swap.Option{swap.WithPriority(5)},

			expectedArgs: []string{"-p", "5"},
		},
		{
			name: "current format with zero priority",

			signature: "SWAPSPACE2",
			opts:      []swap.Option{swap.WithPriority(0)},

			expectedArgs: []string{"-p", "0"},
		},
		{
			name: "old format",

			signature: "SWAP-SPACE",

			expectedErr: swap.ErrOldFormat,
		},
		{
			name: "suspended image s1",

			signature: "S1SUSPEND",

			expectedErr: swap.ErrSuspended,
		},
		{
			name: "suspended image s2",

			signature: "S2SUSPEND",

			expectedErr: swap.ErrSuspended,
		},
		{
			name: "unknown format",

			signature: "NOTSWAPFMT",

			expectedErr: swap.ErrUnknownFormat,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			device := makeSwapImage(t, test.signature)

			var calls []execCall

			opts := append([]swap.Option{
				swap.WithRunner(recordRunner(&calls)),
				swap.WithLogger(zaptest.NewLogger(t)),
			}, test.opts...)

			err := swap.On(context.Background(), device, opts...)

			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				assert.Empty(t, calls, "signature rejection must not spawn swapon")

				return
			}

			require.NoError(t, err)

			require.Len(t, calls, 1)
			assert.Equal(t, "swapon", calls[0].command)
			assert.Equal(t, append(test.expectedArgs, device), calls[0].args)
		})
	}
}

func TestOnMissingDevice(t *testing.T) {
	var calls []execCall

	err := swap.On(context.Background(), filepath.Join(t.TempDir(), "nonexistent"), swap.WithRunner(recordRunner(&calls)))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, calls)
}

func TestOnTruncatedDevice(t *testing.T) {
	// a device shorter than the signature offset yields a short read
	device := filepath.Join(t.TempDir(), "short.img")
	require.NoError(t, os.WriteFile(device, []byte("tiny"), 0o644))

	var calls []execCall

	err := swap.On(context.Background(), device, swap.WithRunner(recordRunner(&calls)))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to determine device's state")
	assert.Empty(t, calls)
}

func TestOff(t *testing.T) {
	var calls []execCall

	require.NoError(t, swap.Off(context.Background(), "/dev/sdq1", swap.WithRunner(recordRunner(&calls))))

	require.Len(t, calls, 1)
	assert.Equal(t, "swapoff", calls[0].command)
	assert.Equal(t, []string{"/dev/sdq1"}, calls[0].args)
}

func writeSwapsTable(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "swaps")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestList(t *testing.T) {
	table := writeSwapsTable(t, "Filename\t\t\t\tType\t\tSize\t\tUsed\t\tPriority\n"+
		"/dev/sda2                               partition\t8388604\t\t1024\t\t-2\n"+
		"/var/swapfile                           file\t\t2097148\t\t0\t\t1\n")

	entries, err := swap.List(swap.WithProcSwaps(table))
	require.NoError(t, err)

	assert.Equal(t, []swap.Entry{
		{
			Path:     "/dev/sda2",
			Type:     "partition",
			Size:     8388604,
			Used:     1024,
			Priority: -2,
		},
		{
			Path:     "/var/swapfile",
			Type:     "file",
			Size:     2097148,
			Used:     0,
			Priority: 1,
		},
	}, entries)
}

func TestListUnreadable(t *testing.T) {
	_, err := swap.List(swap.WithProcSwaps(filepath.Join(t.TempDir(), "nonexistent")))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to read active-swaps table")
}

func TestStatus(t *testing.T) {
	table := writeSwapsTable(t, "/dev/sda1 partition 1048572 0 -2\n/dev/sdb2 partition 2097148 0 -3\n")

	for _, test := range []struct {
		name string

		device string

		expectedActive bool
	}{
		{
			name: "active",

			device: "/dev/sdb2",

			expectedActive: true,
		},
		{
			name: "inactive",

			device: "/dev/sdc1",
		},
		{
			name: "path prefix of an unrelated entry",

			device: "/dev/sdb",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			active, err := swap.Status(test.device, swap.WithProcSwaps(table))
			require.NoError(t, err)
			assert.Equal(t, test.expectedActive, active)
		})
	}
}

func TestStatusNoTrailingNewline(t *testing.T) {
	table := writeSwapsTable(t, "/dev/sda1 partition 1048572 0 -2\n/dev/sdb2 partition 2097148 0 -3")

	active, err := swap.Status("/dev/sdb2", swap.WithProcSwaps(table))
	require.NoError(t, err)
	assert.True(t, active)
}

func TestStatusUnreadableTable(t *testing.T) {
	active, err := swap.Status("/dev/sdb2", swap.WithProcSwaps(filepath.Join(t.TempDir(), "nonexistent")))
	require.Error(t, err)
	assert.False(t, active)
}

func TestStatusMapperDevice(t *testing.T) {
	tmpDir := t.TempDir()

	mapperDir := filepath.Join(tmpDir, "mapper")
	devDir := filepath.Join(tmpDir, "dev")

	require.NoError(t, os.MkdirAll(mapperDir, 0o755))
	require.NoError(t, os.MkdirAll(devDir, 0o755))

	// /dev/mapper entries are one-level symlinks to the real node
	require.NoError(t, os.Symlink("../dm-3", filepath.Join(mapperDir, "fastswap")))

	table := writeSwapsTable(t, filepath.Join(devDir, "dm-3")+" partition 2097148 0 -2\n")

	active, err := swap.Status(filepath.Join(mapperDir, "fastswap"),
		swap.WithProcSwaps(table),
		swap.WithMapperDir(mapperDir),
		swap.WithDevDir(devDir),
	)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestStatusMapperDeviceUnresolvable(t *testing.T) {
	tmpDir := t.TempDir()

	mapperDir := filepath.Join(tmpDir, "mapper")
	require.NoError(t, os.MkdirAll(mapperDir, 0o755))

	table := writeSwapsTable(t, "/dev/sda1 partition 1048572 0 -2\n")

	_, err := swap.Status(filepath.Join(mapperDir, "missing"),
		swap.WithProcSwaps(table),
		swap.WithMapperDir(mapperDir),
	)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to resolve device-mapper path")
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package swap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Magic is the signature of the current swap space format.
const Magic = "SWAPSPACE2"

const (
	magicOld     = "SWAP-SPACE"
	magicS1      = "S1SUSPEND"
	magicS2      = "S2SUSPEND"
	magicSize    = len(Magic)
	headerOffset = 1024

	// mkswap never creates areas with a page size below 2048 bytes, so the
	// signature is never earlier than offset 2038.
	minPageSize = 2048
)

// Signature classification errors.
var (
	// ErrOldFormat is returned for the legacy SWAP-SPACE format.
	ErrOldFormat = errors.New("old swap format, cannot activate")

	// ErrSuspended is returned when the device holds a suspended system image.
	ErrSuspended = errors.New("suspended system on the swap device, cannot activate")

	// ErrUnknownFormat is returned when the signature is not recognized.
	ErrUnknownFormat = errors.New("unknown swap space format, cannot activate")

	// ErrNotSwap is returned by Probe when the device carries no swap signature.
	ErrNotSwap = errors.New("device is not formatted as swap")
)

// SignatureOffset returns the offset of the swap signature on a device.
func SignatureOffset() int64 {
	pageSize := unix.Getpagesize()
	if pageSize < minPageSize {
		pageSize = minPageSize
	}

	return int64(pageSize) - int64(magicSize)
}

// header is the on-disk swap header at offset 1024, as written by mkswap.
type header struct {
	Version    uint32
	LastPage   uint32
	NrBadPages uint32
	UUID       [16]byte
	VolumeName [16]byte
}

func readSignature(device string) ([]byte, error) {
	f, err := os.OpenFile(device, os.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	buf := make([]byte, magicSize)

	if _, err = f.ReadAt(buf, SignatureOffset()); err != nil {
		return nil, fmt.Errorf("failed to determine device's state: %w", err)
	}

	return buf, nil
}

// classifySignature inspects the 10-byte signature region and returns nil
// only for the current SWAPSPACE2 format.
func classifySignature(sig []byte) error {
	switch {
	case bytes.HasPrefix(sig, []byte(magicOld)):
		return ErrOldFormat
	case bytes.HasPrefix(sig, []byte(magicS1)), bytes.HasPrefix(sig, []byte(magicS2)):
		return ErrSuspended
	case !bytes.HasPrefix(sig, []byte(Magic)):
		return ErrUnknownFormat
	}

	return nil
}

// Info describes a swap area discovered on a device.
type Info struct {
	// Label of the swap area, if set.
	Label *string

	// UUID of the swap area, if set.
	UUID *uuid.UUID

	// PageSize the area was formatted with (in bytes).
	PageSize uint32

	// ProbedSize is the usable size of the area (in bytes).
	ProbedSize uint64
}

// Probe inspects the swap superblock of a device.
//
// It returns ErrNotSwap when the device carries no SWAPSPACE2 signature.
func Probe(device string, opts ...Option) (*Info, error) {
	options := applyOptions(opts...)

	f, err := os.OpenFile(device, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	defer f.Close() //nolint:errcheck

	sig := make([]byte, magicSize)

	if _, err = f.ReadAt(sig, SignatureOffset()); err != nil {
		return nil, fmt.Errorf("failed to read swap signature on %s: %w", device, err)
	}

	if !bytes.HasPrefix(sig, []byte(Magic)) {
		return nil, ErrNotSwap
	}

	var hdr header

	if err = binary.Read(io.NewSectionReader(f, headerOffset, int64(binary.Size(&hdr))), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read swap header on %s: %w", device, err)
	}

	pageSize := uint32(SignatureOffset()) + uint32(magicSize)

	info := &Info{
		PageSize:   pageSize,
		ProbedSize: uint64(pageSize) * uint64(hdr.LastPage),
	}

	lbl := hdr.VolumeName[:]
	if lbl[0] != 0 {
		idx := bytes.IndexByte(lbl, 0)
		if idx == -1 {
			idx = len(lbl)
		}

		info.Label = pointer.To(string(lbl[:idx]))
	}

	fsUUID, err := uuid.FromBytes(hdr.UUID[:])
	if err == nil && fsUUID != (uuid.UUID{}) {
		info.UUID = &fsUUID
	}

	options.Logger.Debug("probed swap area",
		zap.Stringp("label", info.Label),
		zap.Uint64("size", info.ProbedSize),
	)

	return info, nil
}

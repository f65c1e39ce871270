package procmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var errHandleClosed = errors.New("handle closed")

// Image is a synthetic process: a sparse byte map that can be opened like a
// real process. Bytes that were never written are unmapped and fail to read.
// It backs tests and offline replays of captured memory.
type Image struct {
	Name   string
	Pid    int
	Base   uint64
	Window uintptr

	// Gone makes Open fail as if the process had exited.
	Gone bool

	mem    map[uint64]byte
	opens  int
	closes int
}

// NewImage returns an empty image for a process called name.
func NewImage(name string, pid int, base uint64) *Image {
	return &Image{
		Name: name,
		Pid:  pid,
		Base: base,
		mem:  make(map[uint64]byte),
	}
}

// Open implements Opener.
func (img *Image) Open(name string) (Process, error) {
	if img.Gone || !strings.EqualFold(name, img.Name) {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	img.opens++
	return &imageHandle{img: img}, nil
}

// Put maps b at addr.
func (img *Image) Put(addr uint64, b []byte) {
	for i, v := range b {
		img.mem[addr+uint64(i)] = v
	}
}

func (img *Image) PutUint8(addr uint64, v uint8) {
	img.Put(addr, []byte{v})
}

func (img *Image) PutUint16(addr uint64, v uint16) {
	img.Put(addr, binary.LittleEndian.AppendUint16(nil, v))
}

func (img *Image) PutUint32(addr uint64, v uint32) {
	img.Put(addr, binary.LittleEndian.AppendUint32(nil, v))
}

func (img *Image) PutUint64(addr uint64, v uint64) {
	img.Put(addr, binary.LittleEndian.AppendUint64(nil, v))
}

// Unmap removes n bytes at addr.
func (img *Image) Unmap(addr uint64, n int) {
	for i := 0; i < n; i++ {
		delete(img.mem, addr+uint64(i))
	}
}

// OpenHandles reports how many handles are currently open.
func (img *Image) OpenHandles() int {
	return img.opens - img.closes
}

// Opens reports how many times the image was opened.
func (img *Image) Opens() int {
	return img.opens
}

type imageHandle struct {
	img    *Image
	closed bool
}

func (h *imageHandle) PID() int              { return h.img.Pid }
func (h *imageHandle) BaseAddress() uint64   { return h.img.Base }
func (h *imageHandle) WindowHandle() uintptr { return h.img.Window }

func (h *imageHandle) ReadAt(addr uint64, buf []byte) error {
	if h.closed {
		return readError(addr, len(buf), errHandleClosed)
	}
	for i := range buf {
		v, ok := h.img.mem[addr+uint64(i)]
		if !ok {
			return readError(addr, len(buf), nil)
		}
		buf[i] = v
	}
	return nil
}

func (h *imageHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.img.closes++
	return nil
}

// Package procmem provides scoped, read-only access to the address space of
// another process. Every read either fills the whole buffer or fails; there
// are no partial results.
package procmem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrProcessNotFound is returned when no running process matches the
	// requested executable name.
	ErrProcessNotFound = errors.New("process not found")

	// ErrMemoryRead is returned for any failed or short read.
	ErrMemoryRead = errors.New("memory read failed")

	// ErrUnsupported is returned by the system opener on platforms without a
	// memory back end.
	ErrUnsupported = errors.New("process memory access is not supported on this platform")
)

// Process is an open handle on a running process.
type Process interface {
	PID() int
	// BaseAddress is the load address of the process's main module.
	BaseAddress() uint64
	// WindowHandle identifies the process's main window, or 0 if unknown.
	WindowHandle() uintptr
	// ReadAt fills buf with the bytes at addr.
	ReadAt(addr uint64, buf []byte) error
	Close() error
}

// Opener locates a process by executable name and opens it for reading.
type Opener interface {
	Open(name string) (Process, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(name string) (Process, error)

func (f OpenerFunc) Open(name string) (Process, error) {
	return f(name)
}

// System opens processes of the local operating system.
var System Opener = OpenerFunc(openSystem)

// With opens the named process, runs fn and releases the handle on every
// exit path, including when fn fails or panics.
func With(o Opener, name string, fn func(Process) error) error {
	p, err := o.Open(name)
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(p)
}

// Read returns n bytes starting at addr.
func Read(p Process, addr uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := p.ReadAt(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadUint8 reads one byte at addr.
func ReadUint8(p Process, addr uint64) (uint8, error) {
	var buf [1]byte
	if err := p.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads a little-endian uint16 at addr.
func ReadUint16(p Process, addr uint64) (uint16, error) {
	var buf [2]byte
	if err := p.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a little-endian uint32 at addr.
func ReadUint32(p Process, addr uint64) (uint32, error) {
	var buf [4]byte
	if err := p.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little-endian uint64 at addr.
func ReadUint64(p Process, addr uint64) (uint64, error) {
	var buf [8]byte
	if err := p.ReadAt(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadPointer reads a 64-bit pointer at addr.
func ReadPointer(p Process, addr uint64) (uint64, error) {
	return ReadUint64(p, addr)
}

func readError(addr uint64, n int, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %d bytes at %#x", ErrMemoryRead, n, addr)
	}
	return fmt.Errorf("%w: %d bytes at %#x: %v", ErrMemoryRead, n, addr, cause)
}

//go:build windows

package procmem

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsProcess struct {
	pid    uint32
	handle windows.Handle
	base   uint64
	hwnd   uintptr
}

func openSystem(name string) (Process, error) {
	pid, err := findPID(name)
	if err != nil {
		return nil, err
	}

	handle, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, err)
	}

	base, err := moduleBase(pid)
	if err != nil {
		_ = windows.CloseHandle(handle)
		return nil, err
	}

	return &windowsProcess{
		pid:    pid,
		handle: handle,
		base:   base,
		hwnd:   mainWindow(pid),
	}, nil
}

func (p *windowsProcess) PID() int              { return int(p.pid) }
func (p *windowsProcess) BaseAddress() uint64   { return p.base }
func (p *windowsProcess) WindowHandle() uintptr { return p.hwnd }

func (p *windowsProcess) ReadAt(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	var n uintptr
	if err := windows.ReadProcessMemory(p.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &n); err != nil {
		return readError(addr, len(buf), err)
	}
	if int(n) != len(buf) {
		return readError(addr, len(buf), fmt.Errorf("short read of %d bytes", n))
	}
	return nil
}

func (p *windowsProcess) Close() error {
	return windows.CloseHandle(p.handle)
}

func findPID(name string) (uint32, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("snapshot processes: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		if strings.EqualFold(windows.UTF16ToString(entry.ExeFile[:]), name) {
			return entry.ProcessID, nil
		}
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return 0, fmt.Errorf("walk processes: %w", err)
	}
	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

// moduleBase returns the load address of the first module of pid, which is
// always the executable itself.
func moduleBase(pid uint32) (uint64, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return 0, fmt.Errorf("snapshot modules of %d: %w", pid, err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Module32First(snap, &entry); err != nil {
		return 0, fmt.Errorf("first module of %d: %w", pid, err)
	}
	return uint64(entry.ModBaseAddr), nil
}

// EnumWindows needs a callback created once for the process lifetime;
// NewCallback slots are never released.
var (
	windowSearchMu  sync.Mutex
	windowSearchPID uint32
	windowSearchHit windows.HWND
	enumWindowsProc = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
			return 1
		}
		if pid == windowSearchPID && windows.IsWindowVisible(hwnd) {
			windowSearchHit = hwnd
			return 0
		}
		return 1
	})
)

func mainWindow(pid uint32) uintptr {
	windowSearchMu.Lock()
	defer windowSearchMu.Unlock()

	windowSearchPID = pid
	windowSearchHit = 0
	// EnumWindows reports an error when the callback stops the walk early.
	_ = windows.EnumWindows(enumWindowsProc, nil)
	return uintptr(windowSearchHit)
}

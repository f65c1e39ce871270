//go:build linux

package procmem

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Linux kernels truncate /proc/<pid>/comm to this many bytes.
const commLen = 15

type linuxProcess struct {
	pid  int
	base uint64
}

func openSystem(name string) (Process, error) {
	pid, err := findPID(name)
	if err != nil {
		return nil, err
	}
	base, err := moduleBase(pid, name)
	if err != nil {
		return nil, err
	}
	return &linuxProcess{pid: pid, base: base}, nil
}

func (p *linuxProcess) PID() int              { return p.pid }
func (p *linuxProcess) BaseAddress() uint64   { return p.base }
func (p *linuxProcess) WindowHandle() uintptr { return 0 }
func (p *linuxProcess) Close() error          { return nil }

func (p *linuxProcess) ReadAt(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err != nil {
		return readError(addr, len(buf), err)
	}
	if n != len(buf) {
		return readError(addr, len(buf), fmt.Errorf("short read of %d bytes", n))
	}
	return nil
}

// findPID returns the lowest pid whose executable matches name. Windows
// binaries running under Wine/Proton appear with their .exe name in both
// comm and the first cmdline argument.
func findPID(name string) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if pid, err := strconv.Atoi(e.Name()); err == nil {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)

	for _, pid := range pids {
		if processMatches(pid, name) {
			return pid, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

func processMatches(pid int, name string) bool {
	dir := filepath.Join("/proc", strconv.Itoa(pid))

	if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil && len(cmdline) > 0 {
		argv0, _, _ := strings.Cut(string(cmdline), "\x00")
		if strings.EqualFold(exeBase(argv0), name) {
			return true
		}
	}

	comm, err := os.ReadFile(filepath.Join(dir, "comm"))
	if err != nil {
		return false
	}
	c := strings.TrimSpace(string(comm))
	if strings.EqualFold(c, name) {
		return true
	}
	return len(c) == commLen && len(name) > commLen && strings.EqualFold(c, name[:commLen])
}

// moduleBase finds the lowest mapping backed by a file named name.
func moduleBase(pid int, name string) (uint64, error) {
	f, err := os.Open(filepath.Join("/proc", strconv.Itoa(pid), "maps"))
	if err != nil {
		return 0, fmt.Errorf("%w: open maps of %d: %v", ErrProcessNotFound, pid, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		path := strings.Join(fields[5:], " ")
		if !strings.EqualFold(exeBase(path), name) {
			continue
		}
		start, _, _ := strings.Cut(fields[0], "-")
		base, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}
		return base, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read maps of %d: %w", pid, err)
	}
	return 0, fmt.Errorf("%w: %s is not mapped in %d", ErrProcessNotFound, name, pid)
}

func exeBase(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

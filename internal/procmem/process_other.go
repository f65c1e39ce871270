//go:build !linux && !windows

package procmem

import "fmt"

func openSystem(name string) (Process, error) {
	return nil, fmt.Errorf("open %s: %w", name, ErrUnsupported)
}

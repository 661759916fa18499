package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is wrapped by Guard with the paused module's name.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module currently rejects mutations.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused while module is paused. A nil view or an
// unnamed module is never paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" || !p.IsPaused(module) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrModulePaused, module)
}

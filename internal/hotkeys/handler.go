package hotkeys

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/platform"
)

// DefaultExitKey closes every sink and ends the run.
const DefaultExitKey = "Control-Mod1-q"

// Target receives shutdown triggers.
type Target interface {
	Trigger(ev coordinator.Event) bool
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler for backend. Backends without X11
// access are rejected.
func NewHandler(backend platform.Backend) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, fmt.Errorf("global hotkeys need an X11 backend")
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:   xu,
		root: accessor.RootWindow(),
	}, nil
}

// RegisterExit binds keySequence to a UserExit trigger on target. An empty
// sequence uses DefaultExitKey.
func (h *Handler) RegisterExit(keySequence string, target Target) error {
	keySequence = strings.TrimSpace(keySequence)
	if keySequence == "" {
		keySequence = DefaultExitKey
	}
	if _, _, err := keybind.ParseString(h.xu, keySequence); err != nil {
		return fmt.Errorf("invalid exit key %q: %w", keySequence, err)
	}

	if err := h.RegisterFunc(keySequence, func() {
		log.Printf("Exit hotkey %s pressed", keySequence)
		target.Trigger(coordinator.Event{Kind: coordinator.UserExit, Origin: "hotkey " + keySequence})
	}); err != nil {
		return fmt.Errorf("failed to register exit hotkey: %w", err)
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback. The callback runs on
// the X event goroutine and must not block.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// Close drops every key handler attached to the root window.
func (h *Handler) Close() {
	keybind.Detach(h.xu, h.root)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	xevent.IgnoreMods = ignoreMasks(base)
}

// ignoreMasks returns 0 plus every non-empty combination of base.
func ignoreMasks(base []uint16) []uint16 {
	out := []uint16{0}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		out = append(out, mask)
	}
	return out
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}

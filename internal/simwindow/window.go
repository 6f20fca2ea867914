// Package simwindow shows the frames of the emulated panel while running in
// simulation mode.
package simwindow

import (
	"image"
	"sync"
)

// Window receives panel frames through Show.
type Window struct {
	lock    sync.RWMutex
	lastImg image.Image

	native nativeWindow
}

// New opens the window.
func New() *Window {
	w := &Window{}
	w.start()
	return w
}

// Show replaces the displayed frame. It matches the sim.Panel observer
// signature.
func (w *Window) Show(img image.Image) {
	w.lock.Lock()
	w.lastImg = img
	w.lock.Unlock()
	w.invalidate()
}

// Last returns the displayed frame, nil before the first one.
func (w *Window) Last() image.Image {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.lastImg
}

// Close closes the window.
func (w *Window) Close() {
	w.close()
}

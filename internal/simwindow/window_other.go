//go:build !amd64
// +build !amd64

package simwindow

import (
	"github.com/jypelle/oledhello/internal/sim"
	"github.com/sirupsen/logrus"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// nativeWindow prints frames in the debug log, there is no window toolkit
// on this architecture.
type nativeWindow struct{}

func (w *Window) start() {
	logrus.Infof("No simulation window on this architecture, frames go to the debug log")
}

func (w *Window) invalidate() {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	if frame, ok := w.Last().(*image1bit.VerticalLSB); ok {
		logrus.Debugf("Frame:\n%s", sim.Dump(frame))
	} else {
		logrus.Debugf("Frame of %T", w.Last())
	}
}

func (w *Window) close() {}

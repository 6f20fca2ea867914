package simwindow

import (
	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"github.com/sirupsen/logrus"
)

type nativeWindow struct {
	window *app.Window
}

func (w *Window) start() {
	logrus.Infof("Open simulation window")
	w.native.window = app.NewWindow(app.Title("oledhello"), app.Size(unit.Px(512), unit.Px(256)), app.MinSize(unit.Px(128), unit.Px(64)))
	go func() {
		if err := w.gioloop(); err != nil {
			logrus.Errorf("Simulation window closed: %v", err)
		}
	}()
	go app.Main()
}

func (w *Window) invalidate() {
	w.native.window.Invalidate()
}

func (w *Window) close() {
	w.native.window.Close()
}

func (w *Window) gioloop() error {
	var ops op.Ops
	for {
		e := <-w.native.window.Events()
		switch e := e.(type) {
		case system.DestroyEvent:
			return e.Err
		case system.FrameEvent:
			gtx := layout.NewContext(&ops, e)

			lastImg := w.Last()
			if lastImg != nil {
				img := widget.Image{Src: paint.NewImageOp(lastImg), Fit: widget.Contain}
				img.Layout(gtx)
			}
			e.Frame(gtx.Ops)
		}
	}
}

package srv

import (
	"context"
	"github.com/jypelle/oledhello/internal/text"
	"github.com/sirupsen/logrus"
	"image"
	"time"
)

// Screen is the part of the display driver the render loop uses.
type Screen interface {
	Clear()
	DrawText(s string, origin image.Point, style text.Style, baseline text.Baseline) error
	Flush() error
}

// Delayer blocks for a duration.
type Delayer interface {
	Delay(d time.Duration)
}

// Scene is what the render loop blinks.
type Scene struct {
	Text     string
	Origin   image.Point
	Style    text.Style
	Baseline text.Baseline
	On       time.Duration
	Off      time.Duration
}

// renderLoop shows the text for scene.On then a blank screen for scene.Off,
// until ctx is done. Cancellation is only seen between two iterations. The
// first failure ends the loop.
func renderLoop(ctx context.Context, screen Screen, delayer Delayer, scene Scene) error {
	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			logrus.Infof("Render loop stopped after %d iterations", iteration-1)
			return nil
		}
		logrus.Debugf("Render iteration %d", iteration)

		// Text frame
		screen.Clear()
		if err := screen.DrawText(scene.Text, scene.Origin, scene.Style, scene.Baseline); err != nil {
			return err
		}
		if err := screen.Flush(); err != nil {
			return err
		}
		delayer.Delay(scene.On)

		// Blank frame
		screen.Clear()
		if err := screen.Flush(); err != nil {
			return err
		}
		delayer.Delay(scene.Off)
	}
}

package device

import (
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

// Clock is the delay source of the render loop. Delays count down on the
// monotonic clock and always run to completion.
type Clock struct {
	lock   sync.Mutex
	timer  *time.Timer
	waited time.Duration
	delays int64
}

func NewClock() *Clock {
	return &Clock{}
}

func (d *Clock) Start() {
	logrus.Infof("Start clock device")
	d.lock.Lock()
	defer d.lock.Unlock()
	d.timer = time.NewTimer(time.Hour)
	d.timer.Stop()
}

// Delay blocks the caller for duration.
func (d *Clock) Delay(duration time.Duration) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.timer == nil {
		d.timer = time.NewTimer(duration)
	} else {
		d.timer.Reset(duration)
	}

	start := time.Now()
	<-d.timer.C
	d.waited += time.Since(start)
	d.delays++
}

// Waited returns the number of completed delays and the time spent in them.
func (d *Clock) Waited() (int64, time.Duration) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.delays, d.waited
}

package srv

import (
	"context"
	"github.com/jypelle/oledhello/internal/board"
	"github.com/jypelle/oledhello/internal/i2cbus"
	"github.com/jypelle/oledhello/internal/sim"
	"github.com/jypelle/oledhello/internal/srv/config"
	"github.com/jypelle/oledhello/internal/srv/device"
	"github.com/jypelle/oledhello/internal/ssd1306"
	"github.com/jypelle/oledhello/internal/version"
	"github.com/sirupsen/logrus"
	"image"
)

type ServerApp struct {
	*config.ServerConfig

	peripherals   *board.Peripherals
	busDevice     *i2cbus.Blocking
	displayDevice *ssd1306.Dev
	clockDevice   *device.Clock
	scene         Scene

	// take claims the peripherals, board.Take outside of tests.
	take    func(board.Opts) (*board.Peripherals, error)
	delayer Delayer

	observer func(image.Image)
}

// NewServerApp loads the embedded parameters. observer, when not nil,
// receives every frame the emulated panel shows in simulation mode.
func NewServerApp(debugMode bool, simulationMode bool, observer func(image.Image)) (*ServerApp, error) {

	logrus.Debugf("Creation of oledhello %s ...", version.AppVersion.String())

	serverConfig, err := config.NewServerConfig(debugMode, simulationMode)
	if err != nil {
		return nil, err
	}

	app := &ServerApp{
		ServerConfig: serverConfig,
		clockDevice:  device.NewClock(),
		take:         board.Take,
		observer:     observer,
	}
	app.delayer = app.clockDevice

	logrus.Debugln("Server created")

	return app, nil
}

// Start brings the hardware up: peripherals, bus, display, text style and
// delay source, in that order. Any failure is final.
func (s *ServerApp) Start() error {
	logrus.Printf("Starting oledhello ...")

	// Take peripherals
	var err error
	s.peripherals, err = s.take(s.BoardOpts())
	if err != nil {
		return err
	}
	if panel, ok := s.peripherals.I2C1.Bus.(*sim.Panel); ok && s.observer != nil {
		panel.OnFrame(s.observer)
	}

	logrus.Printf("Starting devices ...")

	// Start bus device
	logrus.Infof("Start bus device")
	busConfig, err := s.Bus.I2CConfig()
	if err != nil {
		return err
	}
	s.busDevice, err = i2cbus.New(s.peripherals.I2C1.Bus, s.peripherals.Clocks.PClk1, busConfig)
	if err != nil {
		return err
	}

	// Start display device
	logrus.Infof("Start display device")
	opts, err := s.Display.Opts()
	if err != nil {
		return err
	}
	s.displayDevice, err = ssd1306.NewI2C(s.busDevice, &opts)
	if err != nil {
		return err
	}
	if err := s.displayDevice.Init(); err != nil {
		return err
	}

	// Text style
	style, baseline, err := s.Render.Style()
	if err != nil {
		return err
	}
	s.scene = Scene{
		Text:     s.Render.Text,
		Origin:   image.Pt(s.Render.X, s.Render.Y),
		Style:    style,
		Baseline: baseline,
		On:       s.Render.OnDuration(),
		Off:      s.Render.OffDuration(),
	}

	// Start clock device
	s.clockDevice.Start()

	logrus.Printf("Server started")
	return nil
}

// Run starts the server then renders until ctx is done.
func (s *ServerApp) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	return renderLoop(ctx, s.displayDevice, s.delayer, s.scene)
}

// Stop releases the bus. The panel keeps its last frame.
func (s *ServerApp) Stop() {
	logrus.Printf("Stopping oledhello ...")
	if s.busDevice != nil {
		if err := s.busDevice.Close(); err != nil {
			logrus.Warnf("Unable to close bus: %v", err)
		}
	}
	logrus.Printf("Server stopped")
}

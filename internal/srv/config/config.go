package config

import (
	"bytes"
	"github.com/jypelle/oledhello/internal/fault"
	"github.com/jypelle/oledhello/internal/i2cbus"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	DebugMode      bool
	SimulationMode bool

	*ServerParam
}

// NewServerConfig decodes the embedded parameters.
func NewServerConfig(debugMode bool, simulationMode bool) (*ServerConfig, error) {
	return newServerConfig(ParamDefaultFile, debugMode, simulationMode)
}

func newServerConfig(rawParam []byte, debugMode bool, simulationMode bool) (*ServerConfig, error) {
	serverConfig := &ServerConfig{
		DebugMode:      debugMode,
		SimulationMode: simulationMode,
		ServerParam:    &ServerParam{},
	}

	decoder := yaml.NewDecoder(bytes.NewReader(rawParam))
	decoder.KnownFields(true)
	err := decoder.Decode(serverConfig.ServerParam)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidConfig, "config: decode params", err)
	}
	logrus.Debugf("Params: %+v", *serverConfig.ServerParam)

	if err := serverConfig.Validate(); err != nil {
		return nil, err
	}
	return serverConfig, nil
}

// Validate checks every parameter can be turned into a working setup.
func (sc *ServerConfig) Validate() error {
	clocks, err := sc.Clocks.ClockConfig().Freeze()
	if err != nil {
		return err
	}
	busConfig, err := sc.Bus.I2CConfig()
	if err != nil {
		return err
	}
	if _, err := i2cbus.NewTiming(clocks.PClk1, busConfig); err != nil {
		return err
	}
	if sc.Bus.StartRetries < 0 || sc.Bus.StartTimeoutUs <= 0 || sc.Bus.AddrTimeoutUs <= 0 || sc.Bus.DataTimeoutUs <= 0 {
		return fault.New(fault.InvalidConfig, "config: bus", "timeouts must be positive and retries not negative")
	}
	opts, err := sc.Display.Opts()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if _, _, err := sc.Render.Style(); err != nil {
		return err
	}
	if sc.Render.OnMs <= 0 || sc.Render.OffMs <= 0 {
		return fault.New(fault.InvalidConfig, "config: render", "on_ms and off_ms must be positive")
	}
	return nil
}

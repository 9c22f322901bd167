package hardware

import (
	"change-server/internal/domain/hopper"
	"change-server/internal/infrastructure/config"
	"change-server/internal/infrastructure/hardware/pigpio"
	"change-server/internal/infrastructure/hardware/simulated"
)

const eventBuffer = 64

// NewConnector 設定に応じたハードウェア接続を作成
func NewConnector(cfg *config.Config, logger hopper.Logger) hopper.Connector {
	if cfg.Hardware.Driver == config.DriverPigpio {
		pins := make(map[string]pigpio.Pins, len(cfg.Hoppers))
		for _, h := range cfg.Hoppers {
			pins[h.ID] = pigpio.Pins{Signal: h.SignalPin, Enable: h.EnablePin}
		}
		return pigpio.NewConnector(pigpio.Options{
			Address:     cfg.Hardware.Address,
			DialTimeout: cfg.Hardware.DialTimeout,
			ActiveLow:   cfg.Hardware.ActiveLow,
			Pins:        pins,
			EventBuffer: eventBuffer,
		}, logger)
	}

	// シミュレーターの詰まり設定は額面で指定する
	ids := make([]string, 0, len(cfg.Hoppers))
	jamAfter := make(map[string]int64)
	for _, h := range cfg.Hoppers {
		ids = append(ids, h.ID)
		if n, ok := cfg.Hardware.SimJamAfter[h.Denomination]; ok {
			jamAfter[h.ID] = n
		}
	}
	return simulated.NewConnector(simulated.Options{
		Hoppers:  ids,
		Noise:    cfg.Hardware.SimNoise,
		JamAfter: jamAfter,
	})
}

// NewAcceptorConnector 硬貨投入口用のハードウェア接続を作成
// pigpio ではパルス信号を Signal、インヒビットを Enable として扱う（ActiveLow ならローで受付）
func NewAcceptorConnector(cfg *config.Config, logger hopper.Logger) hopper.Connector {
	if cfg.Hardware.Driver == config.DriverPigpio {
		return pigpio.NewConnector(pigpio.Options{
			Address:     cfg.Hardware.Address,
			DialTimeout: cfg.Hardware.DialTimeout,
			ActiveLow:   cfg.Hardware.ActiveLow,
			Pins: map[string]pigpio.Pins{
				config.AcceptorID: {Signal: cfg.Acceptor.PulsePin, Enable: cfg.Acceptor.InhibitPin},
			},
			EventBuffer: eventBuffer,
		}, logger)
	}
	return simulated.NewConnector(simulated.Options{
		Acceptors: []string{config.AcceptorID},
	})
}

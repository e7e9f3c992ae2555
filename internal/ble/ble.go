// Package ble runs the secondary Bluetooth Low Energy presence channel: a
// passive scan that logs a discovery event whenever a nearby device
// advertises a local name containing "GhostMesh". No connection or
// advertising is ever attempted (spec.md §4.10).
//
// No repo in the reference corpus touches Bluetooth, so this package is
// grounded directly on tinygo.org/x/bluetooth's own scan example rather
// than an adapted teacher file (see DESIGN.md).
package ble

import (
	"strings"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"
)

const presenceSubstring = "GhostMesh"

// Scanner runs the passive BLE scan.
type Scanner struct {
	logger *zap.Logger
}

// New creates a Scanner bound to the default adapter.
func New(logger *zap.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Run enables the default adapter and starts scanning. If no adapter is
// available, it logs a warning and returns nil immediately rather than
// crashing the node (spec.md §4.10, §7).
func (s *Scanner) Run() error {
	adapter := bluetooth.DefaultAdapter
	if adapter == nil {
		s.logger.Warn("No Bluetooth adapters found")
		return nil
	}

	if err := adapter.Enable(); err != nil {
		s.logger.Warn("No Bluetooth adapters found", zap.Error(err))
		return nil
	}

	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if isPresenceAdvertisement(result.LocalName()) {
			s.logger.Info("BLE presence discovered",
				zap.String("name", result.LocalName()),
				zap.String("address", result.Address.String()),
			)
		}
	})
	if err != nil {
		s.logger.Warn("BLE scan failed, disabling BLE", zap.Error(err))
		return nil
	}
	return nil
}

// isPresenceAdvertisement reports whether a device's advertised local name
// identifies it as a GhostMesh peer.
func isPresenceAdvertisement(localName string) bool {
	return localName != "" && strings.Contains(localName, presenceSubstring)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

// Control+ hub GATT identifiers
const (
	HubServiceUUID        = "00001623-1212-efde-1623-785feabcd123"
	HubCharacteristicUUID = "00001624-1212-efde-1623-785feabcd123"
)

// DefaultScanTimeout bounds the scan for a hub in Open
const DefaultScanTimeout = 10 * time.Second

var (
	ErrHubNotFound           = errors.New("hub not found")
	ErrCharacteristicMissing = errors.New("hub characteristic not found")
)

var (
	hubService        = mustParseUUID(HubServiceUUID)
	hubCharacteristic = mustParseUUID(HubCharacteristicUUID)
)

func mustParseUUID(s string) bluetooth.UUID {
	uuid, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return uuid
}

// Advertisement is one Control+ hub seen during a scan
type Advertisement struct {
	Address string
	Name    string
	RSSI    int16
}

func (a Advertisement) String() string {
	return fmt.Sprintf("%s %q RSSI %d", a.Address, a.Name, a.RSSI)
}

// matchIdentity reports whether an advertisement matches a configured hub
// identity: a case-insensitive substring of the address or local name.
// Colons are ignored so "90842b5480f3" matches "90:84:2B:54:80:F3".
func matchIdentity(identity, address, name string) bool {
	id := normalizeIdentity(identity)
	if id == "" {
		return false
	}
	return strings.Contains(normalizeIdentity(address), id) ||
		strings.Contains(strings.ToLower(name), strings.ToLower(identity))
}

func normalizeIdentity(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, ":", ""))
}

// BLE is a Link to a hub over Bluetooth Low Energy
type BLE struct {
	adapter     *bluetooth.Adapter
	ScanTimeout time.Duration

	enableOnce sync.Once
	enableErr  error

	mu     sync.Mutex
	device *bluetooth.Device
	char   *bluetooth.DeviceCharacteristic
}

// NewBLE creates a BLE link on the default adapter
func NewBLE() *BLE {
	return &BLE{adapter: bluetooth.DefaultAdapter, ScanTimeout: DefaultScanTimeout}
}

func (b *BLE) String() string { return "BLE" }

func (b *BLE) enable() error {
	b.enableOnce.Do(func() {
		if err := b.adapter.Enable(); err != nil {
			b.enableErr = fmt.Errorf("failed to enable BLE adapter: %w", err)
		}
	})
	return b.enableErr
}

// scan reports every advertisement of the hub service to found until found
// returns true, ctx ends or timeout passes
func (b *BLE) scan(ctx context.Context, timeout time.Duration, found func(bluetooth.ScanResult) bool) error {
	if err := b.enable(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scanErr := make(chan error, 1)
	go func() {
		scanErr <- b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(hubService) {
				return
			}
			if found(result) {
				cancel()
			}
		})
	}()

	select {
	case err := <-scanErr:
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := b.adapter.StopScan(); err != nil {
		log.Debug().Err(err).Msg("StopScan")
	}
	if err := <-scanErr; err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// Discover scans for Control+ hubs until ctx ends or timeout passes
func (b *BLE) Discover(ctx context.Context, timeout time.Duration) ([]Advertisement, error) {
	var (
		mu    sync.Mutex
		seen  = make(map[string]int)
		found []Advertisement
	)
	err := b.scan(ctx, timeout, func(result bluetooth.ScanResult) bool {
		adv := Advertisement{Address: result.Address.String(), Name: result.LocalName(), RSSI: result.RSSI}
		mu.Lock()
		defer mu.Unlock()
		if i, ok := seen[adv.Address]; ok {
			found[i] = adv
			return false
		}
		seen[adv.Address] = len(found)
		found = append(found, adv)
		log.Debug().Stringer("hub", adv).Msg("Hub advertisement")
		return false
	})

	mu.Lock()
	defer mu.Unlock()
	return found, err
}

// Open scans for the hub matching identity, connects, and finds the hub
// characteristic
func (b *BLE) Open(ctx context.Context, identity string) error {
	var (
		mu     sync.Mutex
		target *bluetooth.ScanResult
	)
	err := b.scan(ctx, b.ScanTimeout, func(result bluetooth.ScanResult) bool {
		if !matchIdentity(identity, result.Address.String(), result.LocalName()) {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		if target == nil {
			r := result
			target = &r
		}
		return true
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mu.Lock()
	result := target
	mu.Unlock()
	if result == nil {
		return fmt.Errorf("%w: %q", ErrHubNotFound, identity)
	}

	log.Info().Str("address", result.Address.String()).Str("name", result.LocalName()).Msg("Connecting to hub")
	device, err := b.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	char, err := hubCharacteristicOf(device)
	if err != nil {
		device.Disconnect()
		return err
	}

	b.mu.Lock()
	b.device = &device
	b.char = &char
	b.mu.Unlock()
	return nil
}

func hubCharacteristicOf(device bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{hubService})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover services: %w", err)
	}
	if len(services) == 0 {
		return bluetooth.DeviceCharacteristic{}, ErrCharacteristicMissing
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{hubCharacteristic})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return bluetooth.DeviceCharacteristic{}, ErrCharacteristicMissing
	}
	return chars[0], nil
}

func (b *BLE) characteristic() (*bluetooth.DeviceCharacteristic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.char == nil {
		return nil, ErrNotOpen
	}
	return b.char, nil
}

// Subscribe enables notifications on the hub characteristic. Each
// notification carries one frame.
func (b *BLE) Subscribe(handler func([]byte)) error {
	char, err := b.characteristic()
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(handler); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}
	return nil
}

// Unsubscribe disables notifications
func (b *BLE) Unsubscribe() error {
	char, err := b.characteristic()
	if err != nil {
		return err
	}
	return char.EnableNotifications(nil)
}

// Write sends one frame as a write without response
func (b *BLE) Write(frame []byte) error {
	char, err := b.characteristic()
	if err != nil {
		return err
	}
	_, err = char.WriteWithoutResponse(frame)
	return err
}

// Close disconnects from the hub
func (b *BLE) Close() error {
	b.mu.Lock()
	device := b.device
	b.device = nil
	b.char = nil
	b.mu.Unlock()
	if device == nil {
		return nil
	}
	return device.Disconnect()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate of the usual BLE-UART bridge firmware
const DefaultBaudRate = 115200

// SerialDialer returns a Dialer that opens portName at 8N1
func SerialDialer(portName string, baudRate int) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		mode := &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err := serial.Open(portName, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
		}
		return port, nil
	}
}

// NewSerial creates a stream link over a serial bridge
func NewSerial(portName string, baudRate int) *Stream {
	return NewStream(fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), SerialDialer(portName, baudRate))
}

// SerialPorts lists the serial ports present on the system
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks message statistics and error rates.
// Not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalMessages     uint64
	ValidMessages     uint64
	DecodeErrors      uint64
	UnknownTypes      uint64
	Unsupported       uint64
	MalformedMessages uint64
	Anomalies         uint64
	GenericErrors     uint64
	Discarded         uint64
	ByType            map[MessageType]uint64

	// Rates (calculated)
	MessageRate float64 // messages/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByType:         make(map[MessageType]uint64),
	}
}

// Update updates statistics based on a message and its errors
func (s *Statistics) Update(m Message, decodeErr error, validationErrors []ValidationError) {
	s.TotalMessages++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.DecodeErrors++
		switch {
		case errors.Is(decodeErr, ErrUnknownType):
			s.UnknownTypes++
		case errors.Is(decodeErr, ErrUnsupported):
			s.Unsupported++
		default:
			s.MalformedMessages++
		}
		return
	}
	if m == nil {
		return
	}

	if s.ByType == nil {
		s.ByType = make(map[MessageType]uint64)
	}
	s.ByType[m.Type()]++

	if len(validationErrors) == 0 {
		s.ValidMessages++
		return
	}
	for _, err := range validationErrors {
		s.Anomalies++
		switch err.Type {
		case AnomalyGenericError:
			s.GenericErrors++
		case AnomalyCommandDiscarded:
			s.Discarded++
		}
	}
}

// CalculateRates calculates message and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.MessageRate = float64(s.TotalMessages) / elapsed
		s.ErrorRate = float64(s.DecodeErrors+s.Anomalies) / elapsed
	}
}

// Clone returns a copy that shares no state with s
func (s *Statistics) Clone() *Statistics {
	c := *s
	c.ByType = make(map[MessageType]uint64, len(s.ByType))
	for k, v := range s.ByType {
		c.ByType[k] = v
	}
	return &c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalMessages == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalMessages)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Messages:  %8d\n", s.TotalMessages)
	result += fmt.Sprintf("Valid Messages:  %8d (%.1f%%)\n", s.ValidMessages, percent(s.ValidMessages))

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
		if s.UnknownTypes > 0 {
			result += fmt.Sprintf("  Unknown Type:     %5d\n", s.UnknownTypes)
		}
		if s.Unsupported > 0 {
			result += fmt.Sprintf("  Unsupported:      %5d\n", s.Unsupported)
		}
		if s.MalformedMessages > 0 {
			result += fmt.Sprintf("  Malformed:        %5d\n", s.MalformedMessages)
		}
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d (%.1f%%)\n", s.Anomalies, percent(s.Anomalies))
		if s.GenericErrors > 0 {
			result += fmt.Sprintf("  Generic Errors:   %5d\n", s.GenericErrors)
		}
		if s.Discarded > 0 {
			result += fmt.Sprintf("  Discarded:        %5d\n", s.Discarded)
		}
	}

	result += fmt.Sprintf("Message Rate:    %8.1f msgs/sec\n", s.MessageRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

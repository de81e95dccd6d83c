// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrInvalidProfile wraps every profile validation failure
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is the parsed controller configuration
type Profile struct {
	Hubs []HubConfig
}

// HubConfig describes one physical hub
type HubConfig struct {
	// ID is matched as a substring against the device address or name
	ID    string
	Name  string
	Ports []PortConfig
}

// PortConfig describes one hub port and its button mappings
type PortConfig struct {
	ID       uint8
	Kind     PortKind
	Mappings []Mapping
}

// Mapping binds a button to an action
type Mapping struct {
	Button  byte
	Trigger Trigger
	Action  Action
}

// Find returns the hub whose name or id equals key
func (p *Profile) Find(key string) (*HubConfig, bool) {
	for i := range p.Hubs {
		if p.Hubs[i].Name == key || p.Hubs[i].ID == key {
			return &p.Hubs[i], true
		}
	}
	return nil, false
}

// Raw JSON shapes. Pointers tell a missing field from a zero value.
type (
	profileJSON struct {
		Hubs []json.RawMessage `json:"hubs"`
	}
	hubJSON struct {
		ID    *string           `json:"id"`
		Name  *string           `json:"name"`
		Ports []json.RawMessage `json:"ports"`
	}
	portJSON struct {
		ID       *int              `json:"id"`
		Type     *string           `json:"type"`
		Mappings []json.RawMessage `json:"mappings"`
	}
	mappingJSON struct {
		Type     *string      `json:"type"`
		From     *triggerJSON `json:"from"`
		OnValue  *int         `json:"on_value"`
		OffValue *int         `json:"off_value"`
	}
	triggerJSON struct {
		Button *string `json:"button"`
		Type   *string `json:"type"`
	}
)

// LoadProfile reads and parses a profile file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses and validates profile JSON
func ParseProfile(data []byte) (*Profile, error) {
	var raw profileJSON
	if err := decodeStrict(data, &raw); err != nil {
		return nil, invalid("%v", err)
	}
	if raw.Hubs == nil {
		return nil, invalid("missing hubs")
	}

	profile := &Profile{}
	for i, rawHub := range raw.Hubs {
		hub, err := parseHub(rawHub)
		if err != nil {
			return nil, fmt.Errorf("hub %d: %w", i, err)
		}
		profile.Hubs = append(profile.Hubs, hub)
	}
	return profile, nil
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after profile")
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidProfile, fmt.Sprintf(format, args...))
}

func parseHub(data json.RawMessage) (HubConfig, error) {
	var raw hubJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return HubConfig{}, invalid("%v", err)
	}
	if raw.ID == nil || *raw.ID == "" {
		return HubConfig{}, invalid("missing id")
	}
	if raw.Name == nil || *raw.Name == "" {
		return HubConfig{}, invalid("missing name")
	}
	if raw.Ports == nil {
		return HubConfig{}, invalid("missing ports")
	}

	hub := HubConfig{ID: *raw.ID, Name: *raw.Name}
	seen := make(map[uint8]bool)
	for i, rawPort := range raw.Ports {
		port, err := parsePort(rawPort)
		if err != nil {
			return HubConfig{}, fmt.Errorf("port %d: %w", i, err)
		}
		if seen[port.ID] {
			return HubConfig{}, invalid("duplicate port id %d", port.ID)
		}
		seen[port.ID] = true
		hub.Ports = append(hub.Ports, port)
	}
	return hub, nil
}

func parsePort(data json.RawMessage) (PortConfig, error) {
	var raw portJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return PortConfig{}, invalid("%v", err)
	}
	if raw.ID == nil {
		return PortConfig{}, invalid("missing id")
	}
	if *raw.ID < 0 || *raw.ID > math.MaxUint8 {
		return PortConfig{}, invalid("port id %d out of range 0..255", *raw.ID)
	}
	if raw.Type == nil {
		return PortConfig{}, invalid("missing type")
	}
	kind, err := ParsePortKind(*raw.Type)
	if err != nil {
		return PortConfig{}, invalid("%v", err)
	}
	if raw.Mappings == nil {
		return PortConfig{}, invalid("missing mappings")
	}

	port := PortConfig{ID: uint8(*raw.ID), Kind: kind}
	for i, rawMapping := range raw.Mappings {
		m, err := parseMapping(rawMapping, kind)
		if err != nil {
			return PortConfig{}, fmt.Errorf("mapping %d: %w", i, err)
		}
		port.Mappings = append(port.Mappings, m)
	}
	return port, nil
}

func parseMapping(data json.RawMessage, kind PortKind) (Mapping, error) {
	var raw mappingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Mapping{}, invalid("%v", err)
	}
	if raw.Type == nil {
		return Mapping{}, invalid("missing mapping type")
	}
	actionKind, err := ParseActionKind(*raw.Type)
	if err != nil {
		return Mapping{}, invalid("%v", err)
	}

	if raw.From == nil {
		return Mapping{}, invalid("missing trigger info")
	}
	if raw.From.Button == nil {
		return Mapping{}, invalid("missing button value")
	}
	button := []rune(*raw.From.Button)
	if len(button) != 1 || button[0] > math.MaxUint8 {
		return Mapping{}, invalid("incorrect button value %q", *raw.From.Button)
	}
	if raw.From.Type == nil {
		return Mapping{}, invalid("missing trigger type")
	}
	trigger, err := ParseTrigger(*raw.From.Type)
	if err != nil {
		return Mapping{}, invalid("%v", err)
	}

	// Speeds and powers must fit a signed byte on every port kind
	valueOK := func(v int) bool {
		if kind == PortMotor || actionKind == ActionValue {
			return v >= math.MinInt8 && v <= math.MaxInt8
		}
		return v >= math.MinInt32 && v <= math.MaxInt32
	}
	if raw.OnValue == nil || !valueOK(*raw.OnValue) {
		return Mapping{}, invalid("missing/incorrect on_value")
	}
	action := Action{Kind: actionKind, OnValue: int32(*raw.OnValue)}
	if trigger == TriggerContinuous {
		if raw.OffValue == nil || !valueOK(*raw.OffValue) {
			return Mapping{}, invalid("missing/incorrect off_value")
		}
		action.OffValue = int32(*raw.OffValue)
	}

	return Mapping{Button: byte(button[0]), Trigger: trigger, Action: action}, nil
}

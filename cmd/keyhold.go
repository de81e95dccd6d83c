// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"sort"
	"time"
	"unicode"
	"unicode/utf8"
)

// keyHold turns a terminal's stream of key presses and auto-repeats into
// button down/up edges. A key is released once no repeat has arrived for
// timeout.
type keyHold struct {
	timeout time.Duration
	last    map[byte]time.Time
}

func newKeyHold(timeout time.Duration) *keyHold {
	return &keyHold{timeout: timeout, last: make(map[byte]time.Time)}
}

// Press records a press or repeat of b. Returns true on the first press.
func (k *keyHold) Press(b byte, now time.Time) bool {
	_, held := k.last[b]
	k.last[b] = now
	return !held
}

// Expired releases and returns every key whose last repeat is older than
// the timeout, in ascending order
func (k *keyHold) Expired(now time.Time) []byte {
	var released []byte
	for b, t := range k.last {
		if now.Sub(t) >= k.timeout {
			released = append(released, b)
		}
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	for _, b := range released {
		delete(k.last, b)
	}
	return released
}

// ReleaseAll releases every held key
func (k *keyHold) ReleaseAll() []byte {
	held := k.Held()
	clear(k.last)
	return held
}

// Held returns the held keys in ascending order
func (k *keyHold) Held() []byte {
	held := make([]byte, 0, len(k.last))
	for b := range k.last {
		held = append(held, b)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	return held
}

// buttonForKey maps a key name to a profile button. Letters match either
// case; the configured case wins.
func buttonForKey(key string, buttons map[byte]bool) (byte, bool) {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || size != len(key) || r > 0xFF {
		return 0, false
	}
	for _, c := range []rune{r, unicode.ToUpper(r), unicode.ToLower(r)} {
		if c <= 0xFF && buttons[byte(c)] {
			return byte(c), true
		}
	}
	return 0, false
}

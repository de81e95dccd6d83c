// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import "testing"

func TestMatchIdentity(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		address  string
		local    string
		want     bool
	}{
		{"bare address", "90842b5480f3", "90:84:2B:54:80:F3", "Technic Hub", true},
		{"colon address", "90:84:2b:54:80:f3", "90:84:2B:54:80:F3", "", true},
		{"address suffix", "80F3", "90:84:2B:54:80:F3", "", true},
		{"name substring", "technic", "90:84:2B:54:80:F3", "Technic Hub", true},
		{"other hub", "90842b596c22", "90:84:2B:54:80:F3", "Technic Hub", false},
		{"empty identity", "", "90:84:2B:54:80:F3", "Technic Hub", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchIdentity(tt.identity, tt.address, tt.local); got != tt.want {
				t.Errorf("matchIdentity(%q, %q, %q) = %v, want %v", tt.identity, tt.address, tt.local, got, tt.want)
			}
		})
	}
}

func TestHubUUIDs(t *testing.T) {
	if hubService.String() != HubServiceUUID {
		t.Errorf("service UUID = %s", hubService.String())
	}
	if hubCharacteristic.String() != HubCharacteristicUUID {
		t.Errorf("characteristic UUID = %s", hubCharacteristic.String())
	}
}

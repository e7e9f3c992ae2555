package ble

import "testing"

func TestIsPresenceAdvertisement(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"GhostMesh-node-1", true},
		{"prefix-GhostMesh", true},
		{"", false},
		{"SomeOtherDevice", false},
		{"ghostmesh", false}, // case-sensitive per spec
	}

	for _, c := range cases {
		if got := isPresenceAdvertisement(c.name); got != c.want {
			t.Errorf("isPresenceAdvertisement(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

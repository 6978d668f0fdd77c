package d3d

import "testing"

func TestHandlesComplete(t *testing.T) {
	tests := []struct {
		name string
		h    Handles
		want bool
	}{
		{"empty", Handles{}, false},
		{"d3d11 full", Handles{API: APID3D11, SwapChain: 1, Device: 2, Context: 3}, true},
		{"d3d11 missing context", Handles{API: APID3D11, SwapChain: 1, Device: 2}, false},
		{"d3d12 full", Handles{API: APID3D12, SwapChain: 1, Device12: 2, Queue: 3}, true},
		{"d3d12 missing queue", Handles{API: APID3D12, SwapChain: 1, Device12: 2}, false},
		{"no swap chain", Handles{API: APID3D12, Device12: 2, Queue: 3}, false},
		{"unknown api", Handles{API: APIUnknown, SwapChain: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.Complete(); got != tt.want {
				t.Fatalf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIString(t *testing.T) {
	if APID3D11.String() != "d3d11" || APID3D12.String() != "d3d12" || APIUnknown.String() != "unknown" {
		t.Fatal("API string names changed")
	}
}

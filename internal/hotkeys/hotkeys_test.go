package hotkeys

import "testing"

func TestPollFiresOnDownEdgeOnly(t *testing.T) {
	var got []Action
	p := New(func(a Action) { got = append(got, a) })

	pressed := map[int]bool{}
	p.keyDown = func(vk int) bool { return pressed[vk] }

	// Idle polls deliver nothing.
	p.pollOnce()
	p.pollOnce()
	if len(got) != 0 {
		t.Fatalf("idle polls delivered %v", got)
	}

	// Press F9 and hold it across several polls: one action.
	pressed[vkF9] = true
	p.pollOnce()
	p.pollOnce()
	p.pollOnce()
	if len(got) != 1 || got[0] != ActionToggleGeneration {
		t.Fatalf("held key delivered %v, want one ActionToggleGeneration", got)
	}

	// Release and press again: second action.
	pressed[vkF9] = false
	p.pollOnce()
	pressed[vkF9] = true
	p.pollOnce()
	if len(got) != 2 {
		t.Fatalf("re-press delivered %v, want two actions", got)
	}
}

func TestPollBindings(t *testing.T) {
	tests := []struct {
		vk   int
		want Action
	}{
		{vkF9, ActionToggleGeneration},
		{vkF10, ActionTogglePanel},
		{vkF11, ActionCyclePreset},
	}
	for _, tt := range tests {
		var got []Action
		p := New(func(a Action) { got = append(got, a) })
		p.keyDown = func(vk int) bool { return vk == tt.vk }
		p.pollOnce()
		if len(got) != 1 || got[0] != tt.want {
			t.Fatalf("vk %#x delivered %v, want %v", tt.vk, got, tt.want)
		}
	}
}

package counting

import "testing"

func TestBinarize(t *testing.T) {
	pm := NewProbabilityMask(4, 1)
	pm.Set(0, 0, 0.0)
	pm.Set(1, 0, 0.5) // boundary: not foreground
	pm.Set(2, 0, 0.51)
	pm.Set(3, 0, 1.0)

	m := Binarize(pm)

	want := []uint8{0, 0, 1, 1}
	for i, w := range want {
		if m.Bits[i] != w {
			t.Errorf("bit %d: got %d, want %d", i, m.Bits[i], w)
		}
	}
}

func TestThreshold(t *testing.T) {
	m := &BinaryMask{Width: 2, Height: 1, Bits: []uint8{0, 1}}

	tests := []struct {
		name  string
		level uint8
		want  []uint8
	}{
		{"default level keeps foreground", DefaultBinarizeThreshold, []uint8{0, 255}},
		{"level 254 keeps foreground", 254, []uint8{0, 255}},
		{"level 255 wipes everything", 255, []uint8{0, 0}},
		{"level 0 keeps foreground only", 0, []uint8{0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Threshold(m, tt.level)
			for i, w := range tt.want {
				if out.Pix[i] != w {
					t.Errorf("pix %d: got %d, want %d", i, out.Pix[i], w)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	pm := NewProbabilityMask(8, 8)

	if err := pm.Validate(8, 8); err != nil {
		t.Errorf("matching dimensions: unexpected error %v", err)
	}
	if err := pm.Validate(16, 8); err == nil {
		t.Error("mismatched dimensions: expected error")
	}
}

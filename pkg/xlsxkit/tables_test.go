package xlsxkit

import "testing"

func TestDetectTables(t *testing.T) {
	_, ws := newSheet(t)
	cells := map[string]Value{
		// dense block with a full header
		"A1": Text("Name"), "B1": Text("Qty"), "C1": Text("Price"),
		"A2": Text("apple"), "B2": Number(3), "C2": Number(1.2),
		"A3": Text("pear"), "B3": Number(5),
		// a lone note
		"A6": Text("note"),
		// block whose first row covers one column in twenty
		"A9": Text("x"), "T10": Number(1), "S11": Number(2), "R11": Number(3),
	}
	for addr, v := range cells {
		if err := ws.SetCell(ref(t, addr), v); err != nil {
			t.Fatalf("SetCell(%s) failed: %v", addr, err)
		}
	}

	tests := []struct {
		name   string
		params TableDetectionParams
		want   []string
	}{
		{"defaults", DefaultTableParams(), []string{"A1:C3"}},
		{"no header coverage", TableDetectionParams{MinNonemptyCells: 1}, []string{"A1:C3", "A6", "A9:T11"}},
		{"strict density", TableDetectionParams{DensityMin: 0.9, MinNonemptyCells: 3}, nil},
		{"large minimum", TableDetectionParams{MinNonemptyCells: 9}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range ws.DetectTables(tt.params) {
				got = append(got, r.String())
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DetectTables() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("table %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

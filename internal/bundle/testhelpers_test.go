package bundle

import "testing"

func intPtr(i int) *int { return &i }

// lciVectors mirrors a tiny database: activity 10, product 20, flow 30.
func lciVectors() []Vector {
	return []Vector{
		{
			Matrix:  "biosphere_matrix",
			Name:    "us_eeio_1.1 biosphere",
			Indices: []Index{{Row: 30, Col: 10}},
			Data:    []float64{2.5},
		},
		{
			Matrix:  "technosphere_matrix",
			Name:    "us_eeio_1.1 technosphere",
			Indices: []Index{{Row: 20, Col: 10}, {Row: 20, Col: 10}},
			Data:    []float64{1.0, 5.0},
			Flip:    []bool{true, false},
		},
	}
}

func writeBundle(t *testing.T, path, name string, vectors ...Vector) {
	t.Helper()
	w := Create(path, name, true, false)
	for _, v := range vectors {
		if err := w.AddVector(v); err != nil {
			t.Fatalf("AddVector(%q) failed: %v", v.Name, err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
}

package bundle

import "fmt"

// Profile identifies the manifest layout.
const Profile = "lcagraph-bundle/v1"

// ManifestPath is the manifest member name inside the container.
const ManifestPath = "datapackage.json"

// Member kinds.
const (
	KindIndices = "indices"
	KindData    = "data"
	KindFlip    = "flip"
)

// Member dtypes, spelled the numpy way so other tooling can read the arrays.
const (
	DTypeIndices = "<i4,<i4"
	DTypeData    = "<f8"
	DTypeFlip    = "|b1"
)

// Index is one (row, col) matrix coordinate.
type Index struct {
	Row int32 `json:"row"`
	Col int32 `json:"col"`
}

// Vector is one resource handed to a Writer: a named (indices, data, flip)
// triple feeding a logical matrix.
type Vector struct {
	// Matrix is the logical matrix the resource feeds (e.g. "technosphere_matrix").
	Matrix string

	// Name is the resource name, unique within a bundle.
	Name string

	Indices []Index
	Data    []float64

	// Flip marks entries whose sign is inverted downstream. Nil means the
	// resource has no flip array.
	Flip []bool

	// GlobalIndex pins every entry to one column when set.
	GlobalIndex *int
}

// Len returns the number of entries.
func (v Vector) Len() int {
	return len(v.Indices)
}

// Validate checks array alignment.
func (v Vector) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("vector name is required")
	}
	if v.Matrix == "" {
		return fmt.Errorf("vector %q: matrix is required", v.Name)
	}
	if len(v.Indices) != len(v.Data) {
		return fmt.Errorf("vector %q: %d indices but %d data values", v.Name, len(v.Indices), len(v.Data))
	}
	if v.Flip != nil && len(v.Flip) != len(v.Indices) {
		return fmt.Errorf("vector %q: %d indices but %d flip values", v.Name, len(v.Indices), len(v.Flip))
	}
	return nil
}

// Manifest is the datapackage.json document.
type Manifest struct {
	Profile            string          `json:"profile"`
	Name               string          `json:"name"`
	ID                 string          `json:"id"`
	SumIntraDuplicates bool            `json:"sum_intra_duplicates"`
	SumInterDuplicates bool            `json:"sum_inter_duplicates"`
	Resources          []ResourceEntry `json:"resources"`
}

// ResourceEntry describes one binary member.
type ResourceEntry struct {
	Name        string `json:"name"`
	Matrix      string `json:"matrix"`
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	DType       string `json:"dtype"`
	Length      int    `json:"length"`
	GlobalIndex *int   `json:"global_index,omitempty"`
}

// Resource is a vector read back from a bundle.
type Resource struct {
	Name        string
	Matrix      string
	Indices     []Index
	Data        []float64
	Flip        []bool
	GlobalIndex *int
}

// Len returns the number of entries.
func (r *Resource) Len() int {
	return len(r.Indices)
}

// HasFlip reports whether the resource carries a flip array.
func (r *Resource) HasFlip() bool {
	return r.Flip != nil
}

// Package is a loaded bundle.
type Package struct {
	Path      string
	Manifest  Manifest
	Resources []*Resource
}

// Resource returns the resource with the given name.
func (p *Package) Resource(name string) (*Resource, bool) {
	for _, r := range p.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// ByMatrix returns every resource feeding matrix, in manifest order.
func (p *Package) ByMatrix(matrix string) []*Resource {
	var out []*Resource
	for _, r := range p.Resources {
		if r.Matrix == matrix {
			out = append(out, r)
		}
	}
	return out
}

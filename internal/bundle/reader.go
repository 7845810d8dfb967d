package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zip"

	"github.com/roach88/lcagraph/internal/graph"
)

// Load reads the bundle at path. Every resource listed in the manifest must
// be present and well formed; a bundle missing any member fails to load
// rather than loading with fewer resources.
func Load(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &graph.Error{Code: graph.ErrCodeNotFound, Message: "bundle not found", Path: path, Err: err}
		}
		return nil, graph.NewSerializationError(path, "open bundle", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, graph.NewSerializationError(path, "stat bundle", err)
	}
	return Read(f, info.Size(), path)
}

// LoadBytes reads a bundle held in memory, e.g. fetched from object storage.
func LoadBytes(data []byte, path string) (*Package, error) {
	return Read(bytes.NewReader(data), int64(len(data)), path)
}

// Read reads a bundle from r. path is only used in errors and on the
// returned package.
func Read(r io.ReaderAt, size int64, path string) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, graph.NewSerializationError(path, "open zip", err)
	}

	members := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		members[f.Name] = f
	}

	mf, ok := members[ManifestPath]
	if !ok {
		return nil, graph.NewSerializationError(path, "missing "+ManifestPath, nil)
	}
	raw, err := readMember(mf)
	if err != nil {
		return nil, graph.NewSerializationError(path, "read manifest", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, graph.NewSerializationError(path, "parse manifest", err)
	}
	if manifest.Profile != Profile {
		return nil, graph.NewSerializationError(path, fmt.Sprintf("unsupported profile %q", manifest.Profile), nil)
	}

	pkg := &Package{Path: path, Manifest: manifest}
	byName := make(map[string]*Resource)
	for _, entry := range manifest.Resources {
		res, ok := byName[entry.Name]
		if !ok {
			res = &Resource{Name: entry.Name, Matrix: entry.Matrix, GlobalIndex: entry.GlobalIndex}
			byName[entry.Name] = res
			pkg.Resources = append(pkg.Resources, res)
		}
		if err := res.decode(entry, members); err != nil {
			return nil, graph.NewSerializationError(path, fmt.Sprintf("resource %q", entry.Name), err)
		}
	}

	for _, res := range pkg.Resources {
		if err := res.check(); err != nil {
			return nil, graph.NewSerializationError(path, fmt.Sprintf("resource %q", res.Name), err)
		}
	}
	return pkg, nil
}

// decode fills the array described by entry.
func (r *Resource) decode(entry ResourceEntry, members map[string]*zip.File) error {
	f, ok := members[entry.Path]
	if !ok {
		return fmt.Errorf("missing member %s", entry.Path)
	}
	raw, err := readMember(f)
	if err != nil {
		return err
	}

	switch entry.Kind {
	case KindIndices:
		if entry.DType != DTypeIndices || !holds(raw, 8, entry.Length) {
			return fmt.Errorf("indices member %s: dtype %s, %d bytes for %d entries", entry.Path, entry.DType, len(raw), entry.Length)
		}
		r.Indices = make([]Index, entry.Length)
		for i := range r.Indices {
			r.Indices[i] = Index{
				Row: int32(binary.LittleEndian.Uint32(raw[8*i:])),
				Col: int32(binary.LittleEndian.Uint32(raw[8*i+4:])),
			}
		}
	case KindData:
		if entry.DType != DTypeData || !holds(raw, 8, entry.Length) {
			return fmt.Errorf("data member %s: dtype %s, %d bytes for %d entries", entry.Path, entry.DType, len(raw), entry.Length)
		}
		r.Data = make([]float64, entry.Length)
		for i := range r.Data {
			r.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
	case KindFlip:
		if entry.DType != DTypeFlip || !holds(raw, 1, entry.Length) {
			return fmt.Errorf("flip member %s: dtype %s, %d bytes for %d entries", entry.Path, entry.DType, len(raw), entry.Length)
		}
		r.Flip = make([]bool, entry.Length)
		for i, b := range raw {
			r.Flip[i] = b != 0
		}
	default:
		return fmt.Errorf("unknown member kind %q", entry.Kind)
	}
	return nil
}

// holds reports whether raw is exactly n items of width bytes. The manifest
// length is untrusted, so it is compared without multiplying.
func holds(raw []byte, width, n int) bool {
	return n >= 0 && len(raw)%width == 0 && len(raw)/width == n
}

// check enforces array alignment after all members are decoded.
func (r *Resource) check() error {
	if r.Indices == nil {
		return fmt.Errorf("no indices member")
	}
	if r.Data == nil {
		return fmt.Errorf("no data member")
	}
	if len(r.Indices) != len(r.Data) {
		return fmt.Errorf("%d indices but %d data values", len(r.Indices), len(r.Data))
	}
	if r.Flip != nil && len(r.Flip) != len(r.Indices) {
		return fmt.Errorf("%d indices but %d flip values", len(r.Indices), len(r.Flip))
	}
	return nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", f.Name, err)
	}
	return data, nil
}

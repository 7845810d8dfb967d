package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/naming"
)

// Writer accumulates vectors and commits them as one bundle.
//
// A Writer is not safe for concurrent use. Each compilation owns its writer
// and its target path.
type Writer struct {
	path      string
	name      string
	sumIntra  bool
	sumInter  bool
	vectors   []Vector
	members   map[string]string // member token -> resource name
	finalized bool
}

// Create starts a bundle that Finalize will write to path. Nothing touches
// the filesystem until Finalize.
func Create(path, name string, sumIntra, sumInter bool) *Writer {
	return &Writer{
		path:     path,
		name:     name,
		sumIntra: sumIntra,
		sumInter: sumInter,
		members:  make(map[string]string),
	}
}

// Path returns the target path.
func (w *Writer) Path() string {
	return w.path
}

// AddVector copies v into the bundle, summing intra-duplicates when enabled.
// Resource names must be unique and must not sanitize to another resource's
// member token.
func (w *Writer) AddVector(v Vector) error {
	if w.finalized {
		return fmt.Errorf("add vector %q: bundle already finalized", v.Name)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("add vector: %w", err)
	}

	token := naming.Sanitize(v.Name)
	if other, ok := w.members[token]; ok {
		if other == v.Name {
			return fmt.Errorf("add vector: duplicate resource name %q", v.Name)
		}
		return &graph.Error{
			Code:    graph.ErrCodeSanitizationCollision,
			Message: fmt.Sprintf("resources %q and %q share member name %q", other, v.Name, token),
			Path:    w.path,
		}
	}

	v = clone(v)
	if w.sumIntra {
		v = SumIntraDuplicates(v)
	}
	w.members[token] = v.Name
	w.vectors = append(w.vectors, v)
	return nil
}

// Manifest returns the manifest Finalize would write.
func (w *Writer) Manifest() Manifest {
	m := Manifest{
		Profile:            Profile,
		Name:               w.name,
		ID:                 naming.BundleID(w.name),
		SumIntraDuplicates: w.sumIntra,
		SumInterDuplicates: w.sumInter,
		Resources:          make([]ResourceEntry, 0, 3*len(w.vectors)),
	}
	for _, v := range w.vectors {
		token := naming.Sanitize(v.Name)
		entry := func(kind, dtype string) ResourceEntry {
			return ResourceEntry{
				Name:        v.Name,
				Matrix:      v.Matrix,
				Kind:        kind,
				Path:        token + "." + kind,
				DType:       dtype,
				Length:      v.Len(),
				GlobalIndex: v.GlobalIndex,
			}
		}
		m.Resources = append(m.Resources, entry(KindIndices, DTypeIndices), entry(KindData, DTypeData))
		if v.Flip != nil {
			m.Resources = append(m.Resources, entry(KindFlip, DTypeFlip))
		}
	}
	return m
}

// Finalize writes the bundle to its path atomically. On failure no temporary
// file is left behind and any previous bundle at the path is untouched.
func (w *Writer) Finalize() (err error) {
	if w.finalized {
		return fmt.Errorf("finalize: bundle already finalized")
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return graph.NewSerializationError(w.path, "create bundle directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return graph.NewSerializationError(w.path, "create temporary file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := w.writeTo(tmp); err != nil {
		return graph.NewSerializationError(w.path, "write bundle", err)
	}
	if err := tmp.Sync(); err != nil {
		return graph.NewSerializationError(w.path, "sync bundle", err)
	}
	if err := tmp.Close(); err != nil {
		return graph.NewSerializationError(w.path, "close bundle", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return graph.NewSerializationError(w.path, "chmod bundle", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return graph.NewSerializationError(w.path, "rename bundle into place", err)
	}

	w.finalized = true
	return nil
}

// writeTo streams the container: manifest first, then members in manifest
// order.
func (w *Writer) writeTo(f *os.File) error {
	zw := zip.NewWriter(f)

	manifestJSON, err := marshalManifest(w.Manifest())
	if err != nil {
		return err
	}
	if err := writeMember(zw, ManifestPath, manifestJSON); err != nil {
		return err
	}

	for _, v := range w.vectors {
		token := naming.Sanitize(v.Name)
		if err := writeMember(zw, token+"."+KindIndices, encodeIndices(v.Indices)); err != nil {
			return err
		}
		if err := writeMember(zw, token+"."+KindData, encodeData(v.Data)); err != nil {
			return err
		}
		if v.Flip != nil {
			if err := writeMember(zw, token+"."+KindFlip, encodeFlip(v.Flip)); err != nil {
				return err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// marshalManifest renders the manifest as indented JSON. HTML escaping is
// disabled so dtypes like "<f8" stay literal.
func marshalManifest(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// writeMember adds one deflated member. The header carries no modification
// time so output depends on content alone.
func writeMember(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create member %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write member %s: %w", name, err)
	}
	return nil
}

func encodeIndices(indices []Index) []byte {
	buf := make([]byte, 8*len(indices))
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[8*i:], uint32(idx.Row))
		binary.LittleEndian.PutUint32(buf[8*i+4:], uint32(idx.Col))
	}
	return buf
}

func encodeData(data []float64) []byte {
	buf := make([]byte, 8*len(data))
	for i, x := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func encodeFlip(flip []bool) []byte {
	var buf bytes.Buffer
	buf.Grow(len(flip))
	for _, f := range flip {
		if f {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

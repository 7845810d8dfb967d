package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lcagraph/internal/graph"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// SubgraphDef declares one subgraph.
type SubgraphDef struct {
	ID   int64
	Name string
	Kind graph.SubgraphKind
	Pos  token.Pos
}

// NodeDef declares one node. Subgraph is the owning subgraph's name.
type NodeDef struct {
	Label    string
	ID       int64
	Name     string
	Kind     graph.NodeKind
	Unit     *string
	Location *string
	Subgraph string
	Pos      token.Pos
}

// EdgeDef declares one edge between two node labels.
type EdgeDef struct {
	ID     int64
	From   string
	To     string
	Amount float64
	Pos    token.Pos
}

// Definition is a loaded, cross-checked graph definition.
type Definition struct {
	Subgraphs []SubgraphDef
	Nodes     []NodeDef
	Edges     []EdgeDef
	FileCount int
}

// Load reads every CUE file in dir as one package and extracts the graph
// definition. If mode is LoadModeFailFast, returns on first error.
func Load(dir string, mode LoadMode) (*Definition, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definition directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definition directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	def, errs := Extract(value, mode)
	if def != nil {
		def.FileCount = len(files)
	}
	return def, errs
}

// Extract reads a definition from an already built CUE value.
func Extract(value cue.Value, mode LoadMode) (*Definition, []error) {
	def := &Definition{}
	var errs []error

	// fail records err and reports whether extraction must stop.
	fail := func(err error) bool {
		errs = append(errs, toLoadError(err))
		return mode == LoadModeFailFast
	}

	if v := value.LookupPath(cue.ParsePath("subgraph")); v.Exists() {
		iter, err := v.Fields()
		if err != nil {
			if fail(formatCUEError("subgraph", err)) {
				return def, errs
			}
		} else {
			for iter.Next() {
				sg, err := parseSubgraph(iter.Label(), iter.Value())
				if err != nil {
					if fail(err) {
						return def, errs
					}
					continue
				}
				def.Subgraphs = append(def.Subgraphs, sg)
			}
		}
	}

	if v := value.LookupPath(cue.ParsePath("node")); v.Exists() {
		iter, err := v.Fields()
		if err != nil {
			if fail(formatCUEError("node", err)) {
				return def, errs
			}
		} else {
			for iter.Next() {
				n, err := parseNode(iter.Label(), iter.Value())
				if err != nil {
					if fail(err) {
						return def, errs
					}
					continue
				}
				def.Nodes = append(def.Nodes, n)
			}
		}
	}

	if v := value.LookupPath(cue.ParsePath("edge")); v.Exists() {
		iter, err := v.List()
		if err != nil {
			if fail(formatCUEError("edge", err)) {
				return def, errs
			}
		} else {
			for iter.Next() {
				e, err := parseEdge(iter.Value())
				if err != nil {
					if fail(err) {
						return def, errs
					}
					continue
				}
				def.Edges = append(def.Edges, e)
			}
		}
	}

	if len(errs) > 0 {
		return def, errs
	}

	for _, err := range def.Check() {
		if fail(err) {
			return def, errs
		}
	}

	if len(def.Subgraphs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no subgraphs found in definitions"})
	}
	return def, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func parseSubgraph(name string, v cue.Value) (SubgraphDef, error) {
	if err := v.Err(); err != nil {
		return SubgraphDef{}, formatCUEError("subgraph", err)
	}
	sg := SubgraphDef{Name: name, Pos: v.Pos()}

	kind, err := requiredString(v, "kind", "subgraph.kind")
	if err != nil {
		return SubgraphDef{}, err
	}
	sg.Kind = graph.SubgraphKind(kind)
	if !sg.Kind.Valid() {
		return SubgraphDef{}, &DefinitionError{
			Field:   "subgraph.kind",
			Message: fmt.Sprintf("subgraph %q: invalid kind %q, must be %q or %q", name, kind, graph.KindDatabase, graph.KindImpactCategory),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}

	if sg.ID, err = optionalID(v); err != nil {
		return SubgraphDef{}, err
	}
	return sg, nil
}

func parseNode(label string, v cue.Value) (NodeDef, error) {
	if err := v.Err(); err != nil {
		return NodeDef{}, formatCUEError("node", err)
	}
	n := NodeDef{Label: label, Name: label, Pos: v.Pos()}

	kind, err := requiredString(v, "kind", "node.kind")
	if err != nil {
		return NodeDef{}, err
	}
	n.Kind = graph.NodeKind(kind)
	if !n.Kind.Valid() {
		return NodeDef{}, &DefinitionError{
			Field:   "node.kind",
			Message: fmt.Sprintf("node %q: invalid kind %q", label, kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}

	if n.Subgraph, err = requiredString(v, "subgraph", "node.subgraph"); err != nil {
		return NodeDef{}, err
	}
	if name, ok, err := optionalString(v, "name"); err != nil {
		return NodeDef{}, err
	} else if ok {
		n.Name = name
	}
	if unit, ok, err := optionalString(v, "unit"); err != nil {
		return NodeDef{}, err
	} else if ok {
		n.Unit = &unit
	}
	if loc, ok, err := optionalString(v, "location"); err != nil {
		return NodeDef{}, err
	} else if ok {
		n.Location = &loc
	}
	if n.ID, err = optionalID(v); err != nil {
		return NodeDef{}, err
	}
	return n, nil
}

func parseEdge(v cue.Value) (EdgeDef, error) {
	if err := v.Err(); err != nil {
		return EdgeDef{}, formatCUEError("edge", err)
	}
	e := EdgeDef{Pos: v.Pos()}

	var err error
	if e.From, err = requiredString(v, "from", "edge.from"); err != nil {
		return EdgeDef{}, err
	}
	if e.To, err = requiredString(v, "to", "edge.to"); err != nil {
		return EdgeDef{}, err
	}

	amountVal := v.LookupPath(cue.ParsePath("amount"))
	if !amountVal.Exists() {
		return EdgeDef{}, &DefinitionError{Field: "edge.amount", Message: "amount is required", Pos: v.Pos()}
	}
	if e.Amount, err = amountVal.Float64(); err != nil {
		return EdgeDef{}, formatCUEError("edge.amount", err)
	}

	if e.ID, err = optionalID(v); err != nil {
		return EdgeDef{}, err
	}
	return e, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", &DefinitionError{Field: field, Message: path + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(field, err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(path, err)
	}
	return s, true, nil
}

func optionalID(v cue.Value) (int64, error) {
	fv := v.LookupPath(cue.ParsePath("id"))
	if !fv.Exists() {
		return 0, nil
	}
	id, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError("id", err)
	}
	if id <= 0 {
		return 0, &DefinitionError{Field: "id", Message: fmt.Sprintf("id must be positive, got %d", id), Pos: fv.Pos()}
	}
	return id, nil
}

package bundle

type dedupKey struct {
	row, col int32
	flip     bool
}

// SumIntraDuplicates merges entries of v sharing (row, col, flip) by summing
// their data. The first occurrence of each key keeps its position; the result
// never aliases v's arrays.
func SumIntraDuplicates(v Vector) Vector {
	out := v
	out.Indices = make([]Index, 0, len(v.Indices))
	out.Data = make([]float64, 0, len(v.Data))
	if v.Flip != nil {
		out.Flip = make([]bool, 0, len(v.Flip))
	}

	seen := make(map[dedupKey]int, len(v.Indices))
	for i, idx := range v.Indices {
		key := dedupKey{row: idx.Row, col: idx.Col}
		if v.Flip != nil {
			key.flip = v.Flip[i]
		}
		if pos, ok := seen[key]; ok {
			out.Data[pos] += v.Data[i]
			continue
		}
		seen[key] = len(out.Indices)
		out.Indices = append(out.Indices, idx)
		out.Data = append(out.Data, v.Data[i])
		if v.Flip != nil {
			out.Flip = append(out.Flip, v.Flip[i])
		}
	}
	return out
}

// clone copies v's arrays so later mutation by the caller cannot reach the
// writer.
func clone(v Vector) Vector {
	out := v
	out.Indices = append(make([]Index, 0, len(v.Indices)), v.Indices...)
	out.Data = append(make([]float64, 0, len(v.Data)), v.Data...)
	if v.Flip != nil {
		out.Flip = append(make([]bool, 0, len(v.Flip)), v.Flip...)
	}
	if v.GlobalIndex != nil {
		g := *v.GlobalIndex
		out.GlobalIndex = &g
	}
	return out
}

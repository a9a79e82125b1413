package flakeedit

import (
	"bytes"
	"fmt"
	"sort"
)

// ----- Byte-surgical rewrite -----

type patch struct {
	start int
	end   int
	data  []byte
	seq   int // stable order for equal start
}

// applyPatches copies original, replacing each patch's [start, end) range with its data.
// Everything outside the patched ranges is carried over byte for byte.
func applyPatches(original []byte, patches []patch) ([]byte, error) {
	if len(patches) == 0 {
		return original, nil
	}

	sort.SliceStable(patches, func(i, j int) bool {
		if patches[i].start == patches[j].start {
			if patches[i].end == patches[j].end {
				return patches[i].seq < patches[j].seq
			}
			return patches[i].end < patches[j].end
		}
		return patches[i].start < patches[j].start
	})
	for i := 1; i < len(patches); i++ {
		prev := patches[i-1]
		cur := patches[i]
		// overlapping destructive ranges not allowed; insertions at the same point are fine
		if prev.end > cur.start {
			if !(prev.start == prev.end && cur.start == cur.end && prev.start == cur.start) {
				return nil, fmt.Errorf("flakeedit: overlapping edits at bytes %d-%d and %d-%d",
					prev.start, prev.end, cur.start, cur.end)
			}
		}
	}

	var out bytes.Buffer
	out.Grow(len(original))
	cursor := 0
	for _, p := range patches {
		if p.start < cursor || p.end < p.start || p.end > len(original) {
			return nil, fmt.Errorf("flakeedit: edit range %d-%d outside of %d-byte buffer",
				p.start, p.end, len(original))
		}
		out.Write(original[cursor:p.start])
		out.Write(p.data)
		cursor = p.end
	}
	out.Write(original[cursor:])
	return out.Bytes(), nil
}

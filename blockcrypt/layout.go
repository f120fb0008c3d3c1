package blockcrypt

import "sort"

// padOdds is the inverse probability of a decoy block preceding each real
// block.
const padOdds = 3

// derivePermutation returns a Fisher-Yates shuffle of [0, n) drawn from g.
// For a given key and n the result never changes.
func derivePermutation(n int, g *generator) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := g.intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// applyPermutation returns blocks reordered so that shuffled[k] = blocks[perm[k]].
func applyPermutation(blocks []Block, perm []int) ([]Block, error) {
	if err := checkPermutation(len(blocks), perm); err != nil {
		return nil, err
	}
	shuffled := make([]Block, len(perm))
	for k, idx := range perm {
		shuffled[k] = blocks[idx]
	}
	return shuffled, nil
}

// invertPermutation undoes applyPermutation: original[perm[k]] = shuffled[k].
func invertPermutation(shuffled []Block, perm []int) ([]Block, error) {
	if err := checkPermutation(len(shuffled), perm); err != nil {
		return nil, err
	}
	original := make([]Block, len(perm))
	for k, idx := range perm {
		original[idx] = shuffled[k]
	}
	return original, nil
}

// checkPermutation verifies perm is a bijection on [0, n).
func checkPermutation(n int, perm []int) error {
	if len(perm) != n {
		return validationErr(
			"permutation length mismatch. Expected=%d, Got=%d", n, len(perm),
		)
	}
	seen := make([]bool, n)
	for _, idx := range perm {
		if idx < 0 || idx >= n {
			return validationErr("permutation index %d out of range", idx)
		}
		if seen[idx] {
			return validationErr("permutation index %d repeated", idx)
		}
		seen[idx] = true
	}
	return nil
}

// injectPadding continues g after the permutation draws.  Before each block
// it draws once and, one time in padOdds, inserts a decoy taken from the
// stream.  The returned positions index the augmented list.
func injectPadding(blocks []Block, g *generator) ([]Block, []int) {
	padded := make([]Block, 0, len(blocks)+len(blocks)/padOdds+1)
	positions := []int{}
	for _, b := range blocks {
		if g.uint32()%padOdds == 0 {
			positions = append(positions, len(padded))
			padded = append(padded, g.block())
		}
		padded = append(padded, b)
	}
	return padded, positions
}

// removePadding deletes one block at each position.  Positions index the
// padded list and are checked largest first; they must be distinct and in
// range.  blocks is not modified.
func removePadding(blocks []Block, positions []int) ([]Block, error) {
	sorted := make([]int, len(positions))
	copy(sorted, positions)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	decoy := make([]bool, len(blocks))
	for _, pos := range sorted {
		if pos < 0 || pos >= len(blocks) {
			return nil, validationErr(
				"padding position %d out of range (%d blocks)", pos, len(blocks),
			)
		}
		if decoy[pos] {
			return nil, validationErr("padding position %d repeated", pos)
		}
		decoy[pos] = true
	}
	out := make([]Block, 0, len(blocks)-len(sorted))
	for i := range blocks {
		if !decoy[i] {
			out = append(out, blocks[i])
		}
	}
	return out, nil
}

package services

import "context"

// neighborFunc returns the question ids reachable in one hop from the given
// frontier. Providers decide which edge kinds to follow; closure expansion
// stays the same for all of them.
type neighborFunc func(ctx context.Context, frontier []int) ([]int, error)

// expandClosure computes the transitive closure of roots under neighbors by
// breadth expansion. Each round queries one whole frontier, so the number of
// provider calls is bounded by the tree's depth, not its size. Already-seen
// ids are dropped from the next frontier, which also terminates cyclic data.
func expandClosure(ctx context.Context, roots []int, neighbors neighborFunc) (map[int]struct{}, error) {
	seen := make(map[int]struct{})
	frontier := make([]int, 0, len(roots))

	for _, id := range roots {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, err := neighbors(ctx, frontier)
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, id := range next {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			frontier = append(frontier, id)
		}
	}

	return seen, nil
}

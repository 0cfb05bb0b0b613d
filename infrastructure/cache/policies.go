package cache

// ConnectionMerge is the merge policy for cursor-paginated connections.
//
// A write without an "after" cursor, or into an empty slot, replaces the
// stored connection with the incoming page. A write with a cursor appends
// the incoming edges after the stored ones and takes pageInfo (and any
// other field) from the incoming page. Edges are never deduplicated.
func ConnectionMerge(existing, incoming any, args Arguments) any {
	if existing == nil || !hasCursor(args["after"]) {
		return incoming
	}

	prev, ok := existing.(map[string]any)
	if !ok {
		return incoming
	}
	next, ok := incoming.(map[string]any)
	if !ok {
		return incoming
	}

	prevEdges, _ := prev["edges"].([]any)
	nextEdges, _ := next["edges"].([]any)

	edges := make([]any, 0, len(prevEdges)+len(nextEdges))
	edges = append(edges, prevEdges...)
	edges = append(edges, nextEdges...)

	merged := make(map[string]any, len(next))
	for k, v := range next {
		merged[k] = v
	}
	merged["edges"] = edges
	return merged
}

func hasCursor(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case *string:
		return t != nil && *t != ""
	default:
		return true
	}
}

// PostsCollectionPolicy keys postsCollection by its filter and ordering so
// paginated feed pages share one slot while by-id lookups get their own.
func PostsCollectionPolicy() FieldPolicy {
	return FieldPolicy{
		KeyArgs: []string{"filter", "orderBy"},
		Merge:   ConnectionMerge,
	}
}

// DefaultOptions returns the field policies used by the application.
func DefaultOptions() []Option {
	return []Option{
		WithFieldPolicy("postsCollection", PostsCollectionPolicy()),
	}
}

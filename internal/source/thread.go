package source

// Thread linearizes a branching message graph into the root-to-leaf
// path ending at leafID, oldest first.
//
// The algorithm builds an id→message index once, starts at the leaf,
// and repeatedly follows parent references, prepending each message
// found. It stops at the first message with no parent reference,
// including that root without attempting to look up its nonexistent
// parent. Cost is O(path length) after index construction.
//
// An unknown leaf ID yields an empty slice, never an error. Sibling
// branches (edits, regenerations) off the chosen lineage are not
// surfaced; the caller picks which leaf's history the agent sees.
func Thread(msgs []Message, leafID string) []Message {
	if leafID == "" {
		return nil
	}

	index := make(map[string]Message, len(msgs))
	for _, m := range msgs {
		index[m.ID] = m
	}

	cur, ok := index[leafID]
	if !ok {
		return nil
	}

	// Walk leaf → root. A visited set guards against reference cycles
	// in malformed input; the walk stops rather than spinning.
	var path []Message
	seen := make(map[string]bool, 16)
	for {
		if seen[cur.ID] {
			break
		}
		seen[cur.ID] = true
		path = append(path, cur)

		if cur.ParentID == "" {
			break
		}
		parent, ok := index[cur.ParentID]
		if !ok {
			// Dangling parent reference: the chain ends here.
			break
		}
		cur = parent
	}

	// Reverse in place to get root-first order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

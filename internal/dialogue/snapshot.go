package dialogue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// snapshotStore reads previously exported conversations from a local
// directory: one <conversation-id>.json per conversation in the same
// wire format the service returns. Snapshots are read-only fallback
// material; nothing here writes them.
type snapshotStore struct {
	dir string
}

// list returns metadata for every readable snapshot.
func (s *snapshotStore) list() ([]wireConversationItem, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("no snapshot directory configured")
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var items []wireConversationItem
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		tree, err := s.load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		items = append(items, wireConversationItem{
			ID:         tree.ID,
			Title:      tree.Title,
			UpdateTime: latestCreateTime(tree),
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no snapshots in %s", s.dir)
	}
	return items, nil
}

// load reads one snapshot by conversation ID.
func (s *snapshotStore) load(id string) (*wireTree, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("no snapshot directory configured")
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	var tree wireTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	if tree.ID == "" {
		tree.ID = id
	}
	return &tree, nil
}

// latestCreateTime scans a tree for its most recent message time.
func latestCreateTime(tree *wireTree) float64 {
	var latest float64
	for _, node := range tree.Mapping {
		if node.Message != nil && node.Message.CreateTime > latest {
			latest = node.Message.CreateTime
		}
	}
	return latest
}

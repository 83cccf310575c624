package registry

import (
	"fmt"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// Search finds bound tools matching query. Summary IDs are dotted paths.
func (r *Registry) Search(query string, limit int) ([]index.Summary, error) {
	idx, _ := r.discovery()
	results, err := idx.Search(query, limit)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].ID = JoinPath(results[i].Namespace, results[i].Name)
	}
	return results, nil
}

// Describe returns documentation for the tool bound at path.
func (r *Registry) Describe(path string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	namespace, name, ok := SplitPath(path)
	if !ok || !r.Has(path) {
		return tooldoc.ToolDoc{}, fmt.Errorf("registry: no tool at %q", path)
	}
	_, docs := r.discovery()
	return docs.DescribeTool(namespace+":"+name, level)
}

// discovery returns the search index and doc store, rebuilding them when
// bindings changed since the last call.
func (r *Registry) discovery() (index.Index, tooldoc.Store) {
	r.docsMu.Lock()
	defer r.docsMu.Unlock()

	if !r.dirty && r.idx != nil {
		return r.idx, r.docs
	}

	idx := index.NewInMemoryIndex()
	for path, tool := range r.Descriptors() {
		namespace, name, _ := SplitPath(path)
		entry := tool
		entry.Name = name
		entry.Namespace = namespace
		if entry.InputSchema == nil {
			entry.InputSchema = map[string]any{"type": "object"}
		}
		if err := idx.RegisterTool(entry, model.NewLocalBackend(path)); err != nil && r.logger != nil {
			r.logger.Warn("tool not indexed", "path", path, "error", err)
		}
	}

	r.idx = idx
	r.docs = tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})
	r.dirty = false
	return r.idx, r.docs
}

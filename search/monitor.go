package search

import "github.com/poiesic/corpus/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track tier transitions and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterVectorSearch(matches []*core.Match)
	Degraded(from core.SearchTier, err error)
	AfterAttributeSearch(docs []*core.Document)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.Match)       {}
func (n *noopMonitor) Degraded(_ core.SearchTier, _ error)     {}
func (n *noopMonitor) AfterAttributeSearch(_ []*core.Document) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)           {}

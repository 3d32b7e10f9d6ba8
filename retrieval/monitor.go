package retrieval

// Monitor provides hooks to observe a retrieval.
type Monitor interface {
	Start(query Query)
	AfterEmbedding(dims int)
	AfterSearch(candidates int)
	Finish(results []Result)
}

type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)        {}
func (n *noopMonitor) AfterEmbedding(_ int) {}
func (n *noopMonitor) AfterSearch(_ int)    {}
func (n *noopMonitor) Finish(_ []Result)    {}

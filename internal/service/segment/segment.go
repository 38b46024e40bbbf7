package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out sequential segment IDs. A fresh Generator per result
// keeps IDs deterministic across runs.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

// Next returns "<prefix>_<n>", with n starting at 0.
func (g *Generator) Next(prefix string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s_%d", prefix, n-1)
}

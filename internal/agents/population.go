package agents

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/crowdwatch/internal/entropy"
)

// ChunkSize is the number of agents stepped per random stream. Chunk
// boundaries are fixed so results do not depend on the worker count.
const ChunkSize = 1024

// StepAll advances every agent by one tick and returns the new population.
// Chunks run concurrently; chunk i draws from entropy.Derive(tickSeed, i).
func StepAll(pop []Agent, f Frame, tickSeed int64) []Agent {
	next := make([]Agent, len(pop))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < len(pop); start += ChunkSize {
		end := min(start+ChunkSize, len(pop))
		chunk := uint64(start / ChunkSize)
		g.Go(func() error {
			rng := entropy.Derive(tickSeed, chunk)
			for i := start; i < end; i++ {
				next[i] = Step(pop[i], f, rng)
			}
			return nil
		})
	}
	_ = g.Wait()
	return next
}

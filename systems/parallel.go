package systems

import (
	"sync"
)

// parallelThreshold is the minimum item count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	task       int
	start, end int
	fn         func(task, start, end int)
}

// WorkerPool runs data-parallel passes over index ranges on a fixed set of
// persistent goroutines. Run blocks until every chunk has finished, which
// gives the caller a barrier between passes.
type WorkerPool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewWorkerPool creates a pool with n workers. Workers start lazily on the
// first parallel Run.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	return &WorkerPool{numWorkers: n}
}

// Workers returns the fixed worker count. It doubles as the task count of
// every pass so task ids are stable for a given pool size.
func (p *WorkerPool) Workers() int {
	if p == nil {
		return 1
	}
	return p.numWorkers
}

// start launches persistent worker goroutines.
func (p *WorkerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals all workers to exit and waits for them.
func (p *WorkerPool) Stop() {
	if p == nil || !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.task, chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// Chunks splits n items into the pool's task count. Task k always covers the
// same range for a given n and pool size.
func (p *WorkerPool) Chunks(n int) [][2]int {
	tasks := p.Workers()
	chunkSize := (n + tasks - 1) / tasks
	out := make([][2]int, 0, tasks)
	for w := 0; w < tasks; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		out = append(out, [2]int{start, end})
	}
	return out
}

// Run calls fn(task, start, end) for every chunk of [0, n). Small passes run
// inline on the calling goroutine but still see the same task split.
func (p *WorkerPool) Run(n int, fn func(task, start, end int)) {
	if n <= 0 {
		return
	}
	chunks := p.Chunks(n)

	if p == nil || p.numWorkers == 1 || n < parallelThreshold {
		for task, c := range chunks {
			if c[0] < c[1] {
				fn(task, c[0], c[1])
			}
		}
		return
	}

	if !p.running {
		p.start()
	}

	chunksDispatched := 0
	for task, c := range chunks {
		if c[0] >= c[1] {
			continue
		}
		p.workChan <- workChunk{task: task, start: c[0], end: c[1], fn: fn}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

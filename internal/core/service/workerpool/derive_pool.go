// Package workerpool bounds the number of concurrent price derivations in
// flight within one UpdatePrices batch, adapted from the teacher's
// cache-writing worker pool (submit job, fan jobs out to N workers,
// collect results on an output channel) to price-derivation jobs.
package workerpool

import (
	"context"
	"sync"

	"pricecache/internal/core/deriver"
	"pricecache/internal/core/domain"
)

// Result is one derivation outcome delivered on the pool's output channel.
type Result struct {
	Token domain.Token
	Point domain.PricePoint
	Err   error
}

// Pool derives USD prices for a batch of tokens with up to maxWorkers
// concurrent derivations in flight, per spec.md §4.5.2/§5.
type Pool struct {
	maxWorkers int
	deriver    *deriver.Deriver

	jobQueue   chan domain.Token
	outputChan chan Result
	wg         sync.WaitGroup
}

func New(maxWorkers int, drv *deriver.Deriver) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		maxWorkers: maxWorkers,
		deriver:    drv,
		jobQueue:   make(chan domain.Token, maxWorkers),
		outputChan: make(chan Result, maxWorkers),
	}
}

// Start launches the worker goroutines and returns the output channel.
func (p *Pool) Start(ctx context.Context) <-chan Result {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return p.outputChan
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for token := range p.jobQueue {
		point, err := p.deriver.CalculatePriceInUSD(ctx, token)
		p.outputChan <- Result{Token: token, Point: point, Err: err}
	}
}

// SubmitJob enqueues a token for derivation. Call before Start or
// concurrently with workers draining the queue; the queue is buffered to
// maxWorkers so a full batch submission never blocks waiting for a worker.
func (p *Pool) SubmitJob(token domain.Token) {
	p.jobQueue <- token
}

// CloseAndWait closes the job queue, waits for all in-flight derivations to
// finish, and closes the output channel. Call once every job for this
// batch has been submitted.
func (p *Pool) CloseAndWait() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.outputChan)
}

package exec

import (
	"context"
	"fmt"
	"sync"
)

// rowFunc maps one row. keep=false drops it from the output.
type rowFunc func(r Row) (out Row, keep bool, err error)

// chunk is a contiguous slice of the input handled by one task.
type chunk struct {
	start, end int
	out        []Row
	keep       []bool
	err        error // first failure in the chunk
}

// mapRows applies fn to every row. With a worker pool the input is split
// into contiguous chunks; results are reassembled in input order and the
// error of the lowest failing row index wins.
func (x *Executor) mapRows(ctx context.Context, in []Row, fn rowFunc) ([]Row, error) {
	if x.pool == nil || len(in) < minParallelRows {
		c := &chunk{start: 0, end: len(in)}
		runChunk(ctx, in, c, fn)
		return c.result()
	}

	size := (len(in) + x.parallelism - 1) / x.parallelism
	var chunks []*chunk
	for start := 0; start < len(in); start += size {
		chunks = append(chunks, &chunk{start: start, end: min(start+size, len(in))})
	}

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					c.err = fmt.Errorf("row worker panic: %v", v)
				}
			}()
			runChunk(ctx, in, c, fn)
		}
		if err := x.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	out := make([]Row, 0, len(in))
	for _, c := range chunks {
		if c.err != nil {
			return nil, c.err
		}
		rows, _ := c.result()
		out = append(out, rows...)
	}
	return out, nil
}

// runChunk maps rows [c.start, c.end) and stops at the first error.
func runChunk(ctx context.Context, in []Row, c *chunk, fn rowFunc) {
	c.out = make([]Row, 0, c.end-c.start)
	c.keep = make([]bool, 0, c.end-c.start)
	for i := c.start; i < c.end; i++ {
		if err := ctx.Err(); err != nil {
			c.err = err
			return
		}
		r, keep, err := fn(in[i])
		if err != nil {
			c.err = err
			return
		}
		c.out = append(c.out, r)
		c.keep = append(c.keep, keep)
	}
}

// result returns the kept rows of a finished chunk.
func (c *chunk) result() ([]Row, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]Row, 0, len(c.out))
	for i, r := range c.out {
		if c.keep[i] {
			out = append(out, r)
		}
	}
	return out, nil
}

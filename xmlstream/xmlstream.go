// Package xmlstream splits concatenated OAI record dumps on element
// boundaries and feeds the elements through a parallel processor. Dumps
// produced by bulk harvesters are a stream of <record> elements with
// whitespace or stray bytes in between; record elements do not nest.
package xmlstream

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Splitter returns a bufio.SplitFunc producing one complete element of the
// given name per token. Content outside of elements is discarded.
func Splitter(name string) bufio.SplitFunc {
	var (
		open  = []byte("<" + name)
		close = []byte("</" + name + ">")
	)
	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		start := bytes.Index(data, open)
		if start == -1 {
			if atEOF {
				return len(data), nil, io.EOF
			}
			// Keep a tail in case an opening tag is split across reads.
			if keep := len(open) - 1; len(data) > keep {
				return len(data) - keep, nil, nil
			}
			return 0, nil, nil
		}
		// The tag name must terminate here, otherwise <record would also
		// match <recordList.
		if end := start + len(open); end < len(data) {
			switch data[end] {
			case '>', ' ', '/', '\n', '\t', '\r':
			default:
				return start + 1, nil, nil
			}
		} else if !atEOF {
			return start, nil, nil
		}
		stop := bytes.Index(data[start:], close)
		if stop == -1 {
			if atEOF {
				return len(data), nil, io.EOF
			}
			return start, nil, nil
		}
		stop += start + len(close)
		return stop, data[start:stop], nil
	}
}

// ProcessFunc transforms one element; a nil result is skipped.
type ProcessFunc func([]byte) ([]byte, error)

// Processor runs a ProcessFunc over all elements of a stream with a worker
// pool, writing results in arbitrary order.
type Processor struct {
	Name       string
	Workers    int
	BufferSize int
	Process    ProcessFunc
}

// NewProcessor returns a processor for elements of the given name.
func NewProcessor(name string, f ProcessFunc) *Processor {
	return &Processor{
		Name:       name,
		Workers:    runtime.NumCPU(),
		BufferSize: 1 << 24,
		Process:    f,
	}
}

// Run reads elements from r, processes them in parallel and writes results
// to w. The first processing error cancels the run.
func (p *Processor) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()
	scanner := bufio.NewScanner(bufio.NewReader(r))
	scanner.Split(Splitter(p.Name))
	scanner.Buffer(make([]byte, 0, 1<<20), p.BufferSize)
	var (
		queue   = make(chan []byte, p.Workers*2)
		writeMu sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for scanner.Scan() {
			data := make([]byte, len(scanner.Bytes()))
			copy(data, scanner.Bytes())
			select {
			case queue <- data:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return scanner.Err()
	})
	for i := 0; i < p.Workers; i++ {
		g.Go(func() error {
			for data := range queue {
				result, err := p.Process(data)
				if err != nil {
					return err
				}
				if result == nil {
					continue
				}
				writeMu.Lock()
				_, err = bw.Write(result)
				writeMu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

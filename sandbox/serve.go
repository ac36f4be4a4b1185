package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Serve runs the worker loop: one JSON request per line in, one JSON
// response per line out. Requests run concurrently and replies may come
// back out of order. Serve returns nil once r is exhausted and all
// in-flight requests have been answered.
func Serve(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) error {
	runner := NewRunner(opts...)

	requests := make(chan Request)
	readErr := make(chan error, 1)
	go func() {
		defer close(requests)
		dec := json.NewDecoder(r)
		for {
			var req Request
			if err := dec.Decode(&req); err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- fmt.Errorf("decode request: %w", err)
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		wg  sync.WaitGroup
		wmu sync.Mutex
		enc = json.NewEncoder(w)
		sem = make(chan struct{}, runner.maxConcurrent)
	)
	reply := func(resp Response) {
		wmu.Lock()
		defer wmu.Unlock()
		if err := enc.Encode(resp); err != nil {
			runner.log.Error("Failed to write response", "id", resp.ID, "error", err)
		}
	}

	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-requests:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}

			if req.ID == "" {
				runner.log.Warn("Dropping request without id")
				continue
			}

			sem <- struct{}{}
			wg.Add(1)
			go func(req Request) {
				defer wg.Done()
				defer func() { <-sem }()

				runner.log.Debug("Running script", "id", req.ID)
				resp := runner.Run(ctx, req)
				if resp.Error != nil {
					runner.log.Debug("Script failed", "id", req.ID, "code", resp.Error.Code, "error", resp.Error.Message)
				}
				reply(resp)
			}(req)
		}
	}
}

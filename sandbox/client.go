package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/LingHeChen/stencil/logger"
)

// Client sends requests to a worker and waits for the matching replies.
// It is safe for concurrent use.
type Client struct {
	w   io.WriteCloser
	wmu sync.Mutex
	enc *json.Encoder

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	done chan struct{}
	wait func() error
}

// NewClient connects to a worker reading replies from r and writing
// requests to w
func NewClient(r io.Reader, w io.WriteCloser) *Client {
	c := &Client{
		w:       w,
		enc:     json.NewEncoder(w),
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

// StartProcess launches a worker subprocess and returns a Client on its
// stdin/stdout. The worker's stderr is passed through.
func StartProcess(ctx context.Context, name string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sandbox: %w", err)
	}
	logger.Debug("Sandbox worker started", "pid", cmd.Process.Pid, "cmd", name)

	c := NewClient(stdout, stdin)
	c.wait = cmd.Wait
	return c, nil
}

// Execute implements Executor. A dead connection yields a ChannelError with
// CodeUnavailable; a cancelled ctx returns ctx.Err().
func (c *Client) Execute(ctx context.Context, code string, scope map[string]interface{}) (interface{}, error) {
	id := uuid.NewString()
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, unavailable(err)
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	c.wmu.Lock()
	err := c.enc.Encode(Request{ID: id, Code: code, Scope: encodable(scope)})
	c.wmu.Unlock()
	if err != nil {
		c.shutdown(err)
		return nil, unavailable(err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, unavailable(c.closedErr())
		}
		return resp.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the request stream and waits for a subprocess worker to exit
func (c *Client) Close() error {
	err := c.w.Close()
	if c.wait != nil {
		<-c.done
		if werr := c.wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (c *Client) readLoop(r io.Reader) {
	dec := json.NewDecoder(r)
	for {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			c.shutdown(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if !ok {
			logger.Debug("Sandbox reply for unknown request", "id", resp.ID)
			continue
		}
		ch <- resp
	}
}

// shutdown fails every pending call; later calls fail immediately
func (c *Client) shutdown(err error) {
	if errors.Is(err, io.EOF) {
		err = errors.New("connection closed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	close(c.done)
	logger.Debug("Sandbox channel closed", "error", err)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func unavailable(err error) error {
	return &ChannelError{Code: CodeUnavailable, Message: err.Error()}
}

// encodable drops scope entries that cannot be sent as JSON (NaN numbers,
// functions) so one odd variable does not break every request
func encodable(scope map[string]interface{}) map[string]interface{} {
	if len(scope) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(scope))
	for name, val := range scope {
		if _, err := json.Marshal(val); err != nil {
			logger.Debug("Scope entry not sent to sandbox", "name", name, "error", err)
			continue
		}
		out[name] = val
	}
	return out
}

package appserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"monitor/internal/logging"
)

// Client speaks newline-delimited JSON-RPC with one `codex app-server`
// process. The read loop demuxes by shape: id+result is a response to
// us, method without id is a notification, id+method is a request from
// the server (approvals) that the UI must answer.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	logger logging.Logger

	writeMu sync.Mutex

	idMu   sync.Mutex
	nextID int

	notes chan rpcMessage
	reqs  chan rpcMessage
	done  chan struct{}

	errMu   sync.Mutex
	readErr error

	reqMu   sync.Mutex
	pending map[int]*pendingRequest
}

type rpcMessage struct {
	ID     *int            `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// pendingRequest is one in-flight call: the read loop delivers the
// response to reply by id, so concurrent callers never see each
// other's answers.
type pendingRequest struct {
	method string
	start  time.Time
	reply  chan rpcMessage
}

// Start spawns the app-server process in the workspace directory and
// completes the initialize handshake.
func Start(ctx context.Context, bin, dir string, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if bin == "" {
		bin = "codex"
	}
	cmd := exec.Command(bin, "app-server")
	cmd.Env = append(os.Environ(), "PATH="+widenedPathEnv(bin))
	if dir != "" {
		cmd.Dir = dir
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s app-server: %w", bin, err)
	}
	go logStderr(stderr, logger)

	client := newClient(stdin, stdout, logger)
	client.cmd = cmd

	handshakeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.initialize(handshakeCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("initialize app-server: %w", err)
	}
	logger.Info("app-server started", logging.F("bin", bin), logging.F("dir", dir))
	return client, nil
}

func logStderr(stderr io.Reader, logger logging.Logger) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		logger.Debug("app-server stderr", logging.F("line", scanner.Text()))
	}
}

// widenedPathEnv extends PATH with the bin directories a desktop or
// service launch tends to miss (homebrew, ~/.local, cargo, bun, nvm
// node versions) plus the directory of an explicitly configured binary.
func widenedPathEnv(bin string) string {
	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}
	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		add(p)
	}
	for _, p := range []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin", "/bin", "/usr/sbin", "/sbin"} {
		add(p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		add(filepath.Join(home, ".local", "bin"))
		add(filepath.Join(home, ".cargo", "bin"))
		add(filepath.Join(home, ".bun", "bin"))
		nvmRoot := filepath.Join(home, ".nvm", "versions", "node")
		if entries, err := os.ReadDir(nvmRoot); err == nil {
			for _, entry := range entries {
				nodeBin := filepath.Join(nvmRoot, entry.Name(), "bin")
				if info, err := os.Stat(nodeBin); err == nil && info.IsDir() {
					add(nodeBin)
				}
			}
		}
	}
	if strings.TrimSpace(bin) != "" {
		if parent := filepath.Dir(bin); parent != "." {
			add(parent)
		}
	}
	return strings.Join(paths, string(os.PathListSeparator))
}

// newClient wires a client over arbitrary pipes; tests drive it with an
// in-memory server.
func newClient(stdin io.WriteCloser, stdout io.Reader, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	client := &Client{
		stdin:   stdin,
		reader:  bufio.NewReader(stdout),
		logger:  logger,
		nextID:  1,
		notes:   make(chan rpcMessage, 64),
		reqs:    make(chan rpcMessage, 16),
		done:    make(chan struct{}),
		pending: make(map[int]*pendingRequest),
	}
	go client.readLoop()
	return client
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
}

func (c *Client) Notifications() <-chan rpcMessage { return c.notes }
func (c *Client) Requests() <-chan rpcMessage      { return c.reqs }

// Err returns the terminal read-loop error. It is set before the
// notification channel closes, so any reader that observed the close
// sees it populated.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		"clientInfo": map[string]any{
			"name":    "monitor",
			"title":   "Monitor",
			"version": "dev",
		},
	}
	if err := c.request(ctx, "initialize", params, nil); err != nil {
		return err
	}
	return c.notifyServer("initialized", map[string]any{})
}

// request sends one RPC call and blocks for its response. The pending
// entry is registered before the request goes out, so the read loop can
// route by id no matter how many callers are in flight.
func (c *Client) request(ctx context.Context, method string, params any, out any) error {
	id := c.nextRequestID()
	req := map[string]any{
		"method": method,
		"id":     id,
		"params": params,
	}
	waiter := c.trackRequest(id, method)
	if err := c.send(req); err != nil {
		c.dropRequest(id)
		c.logger.Error("rpc send failed",
			logging.F("request_id", id),
			logging.F("method", method),
			logging.F("error", err))
		return err
	}
	select {
	case <-ctx.Done():
		c.dropRequest(id)
		c.logger.Warn("rpc timeout", logging.F("request_id", id), logging.F("method", method))
		return ctx.Err()
	case <-c.done:
		c.dropRequest(id)
		return c.Err()
	case msg := <-waiter.reply:
		c.logResponse(id, waiter, msg.Error)
		if msg.Error != nil {
			return fmt.Errorf("rpc error %d: %s", msg.Error.Code, msg.Error.Message)
		}
		if out != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

func (c *Client) notifyServer(method string, params any) error {
	return c.send(map[string]any{
		"method": method,
		"params": params,
	})
}

// Respond answers a server-initiated request.
func (c *Client) Respond(id int, result any) error {
	return c.send(map[string]any{
		"id":     id,
		"result": result,
	})
}

func (c *Client) RespondError(id int, code int, message string) error {
	return c.send(map[string]any{
		"id": id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func (c *Client) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.stdin.Write(append(data, '\n'))
	return err
}

func (c *Client) nextRequestID() int {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

func (c *Client) readLoop() {
	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.fail(err)
			return
		}
		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Warn("rpc parse error", logging.F("error", err))
			continue
		}
		switch {
		case msg.ID == nil:
			c.notes <- msg
		case msg.Method != "":
			c.reqs <- msg
		default:
			c.deliverResponse(msg)
		}
	}
}

// fail latches the terminal error, then closes done and the
// notification channel so every waiter and the supervisor pump all
// observe termination.
func (c *Client) fail(err error) {
	c.errMu.Lock()
	c.readErr = err
	c.errMu.Unlock()
	close(c.done)
	close(c.notes)
}

func (c *Client) deliverResponse(msg rpcMessage) {
	c.reqMu.Lock()
	waiter, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.reqMu.Unlock()
	if !ok {
		// The caller already gave up on this id.
		c.logger.Debug("stale rpc response dropped", logging.F("request_id", *msg.ID))
		return
	}
	waiter.reply <- msg
}

func (c *Client) trackRequest(id int, method string) *pendingRequest {
	waiter := &pendingRequest{
		method: method,
		start:  time.Now(),
		reply:  make(chan rpcMessage, 1),
	}
	c.reqMu.Lock()
	c.pending[id] = waiter
	c.reqMu.Unlock()
	return waiter
}

func (c *Client) dropRequest(id int) {
	c.reqMu.Lock()
	delete(c.pending, id)
	c.reqMu.Unlock()
}

func (c *Client) logResponse(id int, waiter *pendingRequest, rpcErr *rpcError) {
	if !c.logger.Enabled(logging.Debug) {
		return
	}
	fields := []logging.Field{
		logging.F("request_id", id),
		logging.F("method", waiter.method),
		logging.F("latency_ms", time.Since(waiter.start).Milliseconds()),
	}
	if rpcErr != nil {
		fields = append(fields, logging.F("rpc_error", rpcErr.Message))
	}
	c.logger.Debug("rpc response", fields...)
}

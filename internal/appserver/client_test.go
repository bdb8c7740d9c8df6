package appserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"monitor/internal/logging"
)

// fakeServer runs the other end of the stdio protocol on in-memory
// pipes and answers requests via the supplied handler.
type fakeServer struct {
	in  *bufio.Reader
	out io.Writer
}

func newFakePair(t *testing.T, handle func(msg rpcMessage, srv *fakeServer)) *Client {
	t.Helper()
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()

	server := &fakeServer{in: bufio.NewReader(clientOut), out: clientIn}
	go func() {
		for {
			line, err := server.in.ReadBytes('\n')
			if err != nil {
				return
			}
			var msg rpcMessage
			if err := json.Unmarshal(line, &msg); err != nil {
				continue
			}
			handle(msg, server)
		}
	}()

	client := newClient(serverIn, serverOut, logging.Nop())
	t.Cleanup(func() {
		serverIn.Close()
		clientIn.Close()
	})
	return client
}

func (s *fakeServer) write(t *testing.T, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	client := newFakePair(t, func(msg rpcMessage, srv *fakeServer) {
		if msg.Method == "thread/start" && msg.ID != nil {
			srv.write(t, map[string]any{
				"id":     *msg.ID,
				"result": map[string]any{"thread": map[string]any{"id": "t1"}},
			})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var result struct {
		Thread struct {
			ID string `json:"id"`
		} `json:"thread"`
	}
	if err := client.request(ctx, "thread/start", map[string]any{}, &result); err != nil {
		t.Fatalf("request: %v", err)
	}
	if result.Thread.ID != "t1" {
		t.Fatalf("thread id = %q", result.Thread.ID)
	}
}

func TestRequestRPCError(t *testing.T) {
	client := newFakePair(t, func(msg rpcMessage, srv *fakeServer) {
		if msg.ID != nil {
			srv.write(t, map[string]any{
				"id":    *msg.ID,
				"error": map[string]any{"code": -32601, "message": "no such method"},
			})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := client.request(ctx, "bogus/method", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "rpc error -32601: no such method" {
		t.Fatalf("error = %q", got)
	}
}

func TestReadLoopDemux(t *testing.T) {
	client := newFakePair(t, func(msg rpcMessage, srv *fakeServer) {
		if msg.Method != "initialize" || msg.ID == nil {
			return
		}
		// Interleave a notification and a server request before the
		// response; the client must route each to its own channel.
		srv.write(t, map[string]any{
			"method": "turn/started",
			"params": map[string]any{"threadId": "t1"},
		})
		srv.write(t, map[string]any{
			"id":     941,
			"method": "item/commandExecution/requestApproval",
			"params": map[string]any{"threadId": "t1"},
		})
		srv.write(t, map[string]any{"id": *msg.ID, "result": map[string]any{}})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.request(ctx, "initialize", map[string]any{}, nil); err != nil {
		t.Fatalf("request: %v", err)
	}

	select {
	case note := <-client.Notifications():
		if note.Method != "turn/started" {
			t.Fatalf("notification method = %q", note.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notification not delivered")
	}

	select {
	case req := <-client.Requests():
		if req.ID == nil || *req.ID != 941 {
			t.Fatalf("server request id = %v", req.ID)
		}
		if req.Method != "item/commandExecution/requestApproval" {
			t.Fatalf("server request method = %q", req.Method)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server request not delivered")
	}
}

func TestConcurrentRequestsRouteByID(t *testing.T) {
	var mu sync.Mutex
	var queued []rpcMessage
	client := newFakePair(t, func(msg rpcMessage, srv *fakeServer) {
		if msg.ID == nil {
			return
		}
		mu.Lock()
		queued = append(queued, msg)
		pending := append([]rpcMessage{}, queued...)
		mu.Unlock()
		if len(pending) < 2 {
			return
		}
		// Answer in reverse arrival order; each caller must still get
		// its own response.
		for i := len(pending) - 1; i >= 0; i-- {
			srv.write(t, map[string]any{
				"id":     *pending[i].ID,
				"result": map[string]any{"method": pending[i].Method},
			})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type echo struct {
		Method string `json:"method"`
	}
	methods := []string{"thread/list", "account/rateLimits/read"}
	results := make([]echo, len(methods))
	errs := make([]error, len(methods))

	var wg sync.WaitGroup
	for i, method := range methods {
		wg.Add(1)
		go func(i int, method string) {
			defer wg.Done()
			errs[i] = client.request(ctx, method, map[string]any{}, &results[i])
		}(i, method)
	}
	wg.Wait()

	for i, method := range methods {
		if errs[i] != nil {
			t.Fatalf("%s: %v", method, errs[i])
		}
		if results[i].Method != method {
			t.Fatalf("response for %q delivered to %q caller", results[i].Method, method)
		}
	}
}

func TestTransportLossReachesEveryReader(t *testing.T) {
	clientOut, serverIn := io.Pipe()
	serverOut, clientIn := io.Pipe()
	client := newClient(serverIn, serverOut, logging.Nop())

	reqErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		reqErr <- client.request(ctx, "thread/list", map[string]any{}, nil)
	}()

	// Wait for the request to hit the wire, then kill the transport
	// while the caller is still waiting.
	if _, err := bufio.NewReader(clientOut).ReadBytes('\n'); err != nil {
		t.Fatalf("read request: %v", err)
	}
	clientIn.CloseWithError(io.ErrClosedPipe)

	if err := <-reqErr; err == nil {
		t.Fatalf("pending request must surface the transport error")
	}

	// The notification reader observes the same teardown even though a
	// request already returned the error.
	select {
	case _, ok := <-client.Notifications():
		if ok {
			t.Fatalf("expected the notification channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notification channel never closed")
	}
	if client.Err() == nil {
		t.Fatalf("terminal error must remain readable for late readers")
	}
}

func TestRespondShapes(t *testing.T) {
	got := make(chan rpcMessage, 2)
	client := newFakePair(t, func(msg rpcMessage, srv *fakeServer) {
		got <- msg
	})

	if err := client.Respond(7, map[string]any{"decision": "approve"}); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if err := client.RespondError(8, -32000, "declined"); err != nil {
		t.Fatalf("RespondError: %v", err)
	}

	first := <-got
	if first.ID == nil || *first.ID != 7 || len(first.Result) == 0 {
		t.Fatalf("first = %+v", first)
	}
	second := <-got
	if second.ID == nil || *second.ID != 8 || second.Error == nil || second.Error.Code != -32000 {
		t.Fatalf("second = %+v", second)
	}
}

func TestWidenedPathEnv(t *testing.T) {
	env := widenedPathEnv("/custom/tools/codex")
	parts := strings.Split(env, string(os.PathListSeparator))

	seen := map[string]int{}
	for _, p := range parts {
		seen[p]++
	}
	for _, want := range []string{"/usr/bin", "/opt/homebrew/bin", "/custom/tools"} {
		if seen[want] == 0 {
			t.Fatalf("widened PATH missing %q: %s", want, env)
		}
	}
	for p, n := range seen {
		if n > 1 {
			t.Fatalf("duplicate PATH entry %q", p)
		}
	}
}

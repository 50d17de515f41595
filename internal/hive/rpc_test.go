package hive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
)

// rpcStub is a fake RPC node that records the requests it receives.
type rpcStub struct {
	mu       sync.Mutex
	requests []map[string]any
	status   int
	body     string
}

func (s *rpcStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var req map[string]any
	_ = json.Unmarshal(data, &req)

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if s.status != 0 {
		w.WriteHeader(s.status)
	}
	io.WriteString(w, s.body)
}

func (s *rpcStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

const bobAccount = `{"jsonrpc":"2.0","id":1,"result":[{"name":"bob","posting":{"weight_threshold":1,"key_auths":[["` + otherPubKey + `",1],["` + testPubKey + `",1]]}}]}`

func newStubServer(t *testing.T, stub *rpcStub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAccountRequestShape(t *testing.T) {
	stub := &rpcStub{body: bobAccount}
	srv := newStubServer(t, stub)

	client := NewRPCClient(RPCOptions{Nodes: []string{srv.URL}})
	defer client.Close()

	account, err := client.GetAccount(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if account.Name != "bob" || len(account.Posting.KeyAuths) != 2 {
		t.Errorf("account = %+v", account)
	}
	if account.Posting.KeyAuths[1].Key != testPubKey || account.Posting.KeyAuths[1].Weight != 1 {
		t.Errorf("key_auths[1] = %+v", account.Posting.KeyAuths[1])
	}

	req := stub.requests[0]
	if req["jsonrpc"] != "2.0" || req["method"] != "condenser_api.get_accounts" || req["id"] != float64(1) {
		t.Errorf("request = %v", req)
	}
	params, _ := json.Marshal(req["params"])
	if string(params) != `[["bob"]]` {
		t.Errorf("params = %s, want [[\"bob\"]]", params)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	srv := newStubServer(t, &rpcStub{body: `{"jsonrpc":"2.0","id":1,"result":[]}`})

	client := NewRPCClient(RPCOptions{Nodes: []string{srv.URL}})
	_, err := client.GetAccount(context.Background(), "doesnotexist")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("GetAccount() error = %v, want ErrAccountNotFound", err)
	}
}

func TestCallFallsBackInOrder(t *testing.T) {
	down := &rpcStub{status: http.StatusBadGateway, body: `bad gateway`}
	empty := &rpcStub{body: `{}`}
	up := &rpcStub{body: bobAccount}
	unused := &rpcStub{body: bobAccount}

	client := NewRPCClient(RPCOptions{Nodes: []string{
		newStubServer(t, down).URL,
		newStubServer(t, empty).URL,
		newStubServer(t, up).URL,
		newStubServer(t, unused).URL,
	}})

	if _, err := client.GetAccount(context.Background(), "bob"); err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}

	for name, want := range map[string]struct {
		stub  *rpcStub
		calls int
	}{
		"down":   {down, 1},
		"empty":  {empty, 1},
		"up":     {up, 1},
		"unused": {unused, 0},
	} {
		if got := want.stub.calls(); got != want.calls {
			t.Errorf("%s node got %d calls, want %d", name, got, want.calls)
		}
	}
}

func TestCallAllNodesFail(t *testing.T) {
	a := &rpcStub{status: http.StatusInternalServerError}
	b := &rpcStub{status: http.StatusServiceUnavailable}

	client := NewRPCClient(RPCOptions{Nodes: []string{newStubServer(t, a).URL, newStubServer(t, b).URL}})
	_, err := client.GetAccount(context.Background(), "bob")
	if !apperr.Is(err, apperr.KindTransport) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if a.calls() != 1 || b.calls() != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", a.calls(), b.calls())
	}
}

func TestCallRPCErrorIsNotRetried(t *testing.T) {
	first := &rpcStub{body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`}
	second := &rpcStub{body: bobAccount}

	client := NewRPCClient(RPCOptions{Nodes: []string{newStubServer(t, first).URL, newStubServer(t, second).URL}})
	_, err := client.GetAccount(context.Background(), "bob")

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Fatalf("error = %v, want RPCError -32602", err)
	}
	if second.calls() != 0 {
		t.Error("a node error object should not fall through to the next node")
	}
}

func TestBreakerSkipsDeadNode(t *testing.T) {
	dead := &rpcStub{status: http.StatusInternalServerError}
	alive := &rpcStub{body: bobAccount}

	client := NewRPCClient(RPCOptions{
		Nodes:           []string{newStubServer(t, dead).URL, newStubServer(t, alive).URL},
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
	})

	for i := 0; i < 5; i++ {
		if _, err := client.GetAccount(context.Background(), "bob"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	if dead.calls() != 2 {
		t.Errorf("dead node got %d calls, want 2 before the breaker opened", dead.calls())
	}
	if alive.calls() != 5 {
		t.Errorf("alive node got %d calls, want 5", alive.calls())
	}
}

func TestCallCancelled(t *testing.T) {
	stub := &rpcStub{body: bobAccount}
	client := NewRPCClient(RPCOptions{Nodes: []string{newStubServer(t, stub).URL}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetAccount(ctx, "bob")
	if !apperr.Is(err, apperr.KindTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
	if stub.calls() != 0 {
		t.Error("no request should be sent with a cancelled context")
	}
}

func TestCallNoNodes(t *testing.T) {
	client := NewRPCClient(RPCOptions{})
	if err := client.Call(context.Background(), "condenser_api.get_accounts", nil, nil); !apperr.Is(err, apperr.KindTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
}

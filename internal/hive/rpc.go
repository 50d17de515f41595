package hive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/checkinecuador/checkin/internal/apperr"
	"github.com/checkinecuador/checkin/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"resty.dev/v3"
)

// ErrAccountNotFound is returned when a node answers with no account.
var ErrAccountNotFound = errors.New("account not found")

// DefaultNodeTimeout bounds a single request to one node, so a hung node
// does not use up the whole call budget.
const DefaultNodeTimeout = 5 * time.Second

// Account is the part of a condenser_api account record this tool reads.
type Account struct {
	Name    string    `json:"name"`
	Posting Authority `json:"posting"`
}

// Authority is a weighted set of keys.
type Authority struct {
	WeightThreshold int       `json:"weight_threshold"`
	KeyAuths        []KeyAuth `json:"key_auths"`
}

// KeyAuth is a [public_key, weight] pair.
type KeyAuth struct {
	Key    string
	Weight int
}

func (k *KeyAuth) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("key_auth: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &k.Key); err != nil {
		return fmt.Errorf("key_auth key: %w", err)
	}
	if err := json.Unmarshal(pair[1], &k.Weight); err != nil {
		return fmt.Errorf("key_auth weight: %w", err)
	}
	return nil
}

// RPCError is an error object returned by a node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCOptions configures an RPCClient.
type RPCOptions struct {
	Nodes []string
	// BreakerFailures is the number of consecutive failures after which a
	// node is skipped. 0 disables the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long an open breaker waits before probing again.
	BreakerCooldown time.Duration
	NodeTimeout     time.Duration
	Logger          *zap.Logger
}

// RPCClient calls JSON-RPC methods on an ordered list of nodes. Each call
// goes to the first node that answers.
type RPCClient struct {
	client *resty.Client
	nodes  []*rpcNode
	logger *zap.Logger
}

type rpcNode struct {
	url     string
	breaker *gobreaker.CircuitBreaker
}

// NewRPCClient creates a client for the given nodes.
func NewRPCClient(opts RPCOptions) *RPCClient {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NodeTimeout == 0 {
		opts.NodeTimeout = DefaultNodeTimeout
	}
	if opts.BreakerCooldown == 0 {
		opts.BreakerCooldown = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(opts.NodeTimeout).
		SetHeader("Accept", "application/json").
		AddResponseMiddleware(metrics.ResponseMiddleware("rpc"))

	c := &RPCClient{client: client, logger: logger}
	for _, url := range opts.Nodes {
		n := &rpcNode{url: url}
		if opts.BreakerFailures > 0 {
			n.breaker = newBreaker(url, opts.BreakerFailures, opts.BreakerCooldown, logger)
		}
		c.nodes = append(c.nodes, n)
	}
	return c
}

func newBreaker(node string, failures uint32, cooldown time.Duration, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    node,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("rpc node breaker state changed",
				zap.String("node", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.BreakerOpen(name, to == gobreaker.StateOpen)
		},
	})
}

// Close releases idle connections.
func (c *RPCClient) Close() error {
	return c.client.Close()
}

// Call invokes method on the first node that responds and decodes the
// result into out. Transport failures move on to the next node; an error
// object from a node is returned as is.
func (c *RPCClient) Call(ctx context.Context, method string, params, out any) error {
	if len(c.nodes) == 0 {
		return apperr.Transport("rpc", nil, "no RPC nodes configured")
	}

	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}

	var lastErr error
	for _, node := range c.nodes {
		if err := ctx.Err(); err != nil {
			return apperr.Transport("rpc", err, "request cancelled")
		}

		resp, err := c.callNode(ctx, node, &req)
		if err != nil {
			c.logger.Debug("rpc node failed",
				zap.String("node", node.url),
				zap.String("method", method),
				zap.Error(err))
			lastErr = err
			continue
		}

		if resp.Error != nil {
			return resp.Error
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	}

	return apperr.Transport("rpc", lastErr, "all RPC nodes failed")
}

func (c *RPCClient) callNode(ctx context.Context, node *rpcNode, req *rpcRequest) (*rpcResponse, error) {
	do := func() (interface{}, error) {
		res, err := c.client.R().
			WithContext(ctx).
			SetBody(req).
			SetResult(&rpcResponse{}).
			Post(node.url)
		if err != nil {
			return nil, err
		}
		if !res.IsSuccess() {
			return nil, fmt.Errorf("%s returned %s", node.url, res.Status())
		}
		resp, ok := res.Result().(*rpcResponse)
		if !ok || (resp.Result == nil && resp.Error == nil) {
			return nil, fmt.Errorf("%s returned an empty response", node.url)
		}
		return resp, nil
	}

	var (
		v   interface{}
		err error
	)
	if node.breaker != nil {
		v, err = node.breaker.Execute(do)
	} else {
		v, err = do()
	}
	if err != nil {
		return nil, err
	}
	return v.(*rpcResponse), nil
}

// GetAccounts fetches account records by handle.
func (c *RPCClient) GetAccounts(ctx context.Context, handles ...string) ([]Account, error) {
	var accounts []Account
	if err := c.Call(ctx, "condenser_api.get_accounts", []any{handles}, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetAccount fetches one account. It returns ErrAccountNotFound when the
// node knows no such handle.
func (c *RPCClient) GetAccount(ctx context.Context, handle string) (*Account, error) {
	accounts, err := c.GetAccounts(ctx, handle)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrAccountNotFound
	}
	return &accounts[0], nil
}

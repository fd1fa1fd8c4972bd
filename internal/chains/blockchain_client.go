package chains

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/retry"
)

const defaultHeaderPoll = 12 * time.Second

// cachedHeader is the latest head and when it arrived.
type cachedHeader struct {
	header *types.Header
	at     time.Time
}

// Client is an ethclient whose HeaderByNumber(nil) is served from a head
// polled in the background. The writer asks for the head on every fee
// suggestion.
type Client struct {
	*ethclient.Client
	head atomic.Pointer[cachedHeader]
}

// DialClient connects to url, loads the current head and starts polling it
// every interval until ctx is done.
func DialClient(ctx context.Context, url string, interval time.Duration) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial rpc %s", url)
	}

	c := &Client{Client: ec}
	if err := c.fetchHead(ctx); err != nil {
		ec.Close()
		return nil, err
	}

	if interval <= 0 {
		interval = defaultHeaderPoll
	}
	go c.pollHead(ctx, interval)

	return c, nil
}

func (c *Client) pollHead(ctx context.Context, interval time.Duration) {
	cfg := retry.DefaultConfig()
	cfg.MaxDelayBeforeRetrying = interval
	cfg.InitialDelayBeforeRetrying = interval / 10

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	polls := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("head poller stopped", "polls", polls)
			return
		case <-ticker.C:
			_, _ = retry.Retry(ctx, cfg,
				func(ctx context.Context) ([]interface{}, error) {
					polls++
					return nil, c.fetchHead(ctx)
				},
				nil,
				"fetch chain head")
		}
	}
}

func (c *Client) fetchHead(ctx context.Context) error {
	h, err := c.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "fetch latest header")
	}
	c.head.Store(&cachedHeader{header: h, at: time.Now().UTC()})
	return nil
}

// HeaderByNumber returns the cached head for a nil number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		if h := c.head.Load(); h != nil {
			return h.header, nil
		}
	}
	return c.Client.HeaderByNumber(ctx, number)
}

// HeadAge is the time since the cached head was fetched.
func (c *Client) HeadAge() time.Duration {
	h := c.head.Load()
	if h == nil {
		return 0
	}
	return time.Since(h.at)
}

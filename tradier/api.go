package tradier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/xhhuango/json"
)

const DefaultBaseURL = "https://api.tradier.com/v1"

// Client is a minimal Tradier market data client.
type Client struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{Token: token, BaseURL: baseURL, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.BaseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	req.Header.Add("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

// GetQuote returns the latest quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	var r quotesResponse
	if err := c.get(ctx, "/markets/quotes", url.Values{"symbols": {symbol}}, &r); err != nil {
		return Quote{}, err
	}
	if r.Quotes.Quote.Symbol == "" {
		return Quote{}, fmt.Errorf("no quote for %s", symbol)
	}
	return r.Quotes.Quote, nil
}

// GetOptionsChain downloads every chain whose days to expiry, counted from
// now, lie in [minDTE, maxDTE]. Chains are keyed by expiration date.
func (c *Client) GetOptionsChain(ctx context.Context, symbol string, minDTE, maxDTE int) (map[string]*OptionChain, error) {
	var exps OptionExpirations
	q := url.Values{"symbol": {symbol}, "includeAllRoots": {"true"}, "expirationType": {"true"}}
	if err := c.get(ctx, "/markets/options/expirations", q, &exps); err != nil {
		return nil, err
	}

	chains := make(map[string]*OptionChain)
	today := time.Now()
	for _, e := range exps.Expirations.Expiration {
		expiry, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expiration date: %w", err)
		}
		dte := int(expiry.Sub(today).Hours() / 24)
		if dte < minDTE || dte > maxDTE {
			continue
		}

		chain := &OptionChain{}
		q := url.Values{"symbol": {symbol}, "expiration": {e.Date}, "greeks": {"true"}}
		if err := c.get(ctx, "/markets/options/chains", q, chain); err != nil {
			return nil, fmt.Errorf("chain %s: %w", e.Date, err)
		}
		chain.ExpirationDate = e.Date
		chains[e.Date] = chain
	}
	return chains, nil
}

// LoadOptionChains reads chains previously saved with SaveOptionChains.
func LoadOptionChains(path string) (map[string]*OptionChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read option chains: %w", err)
	}
	chains := make(map[string]*OptionChain)
	if err := json.Unmarshal(data, &chains); err != nil {
		return nil, fmt.Errorf("cannot parse option chains: %w", err)
	}
	for date, c := range chains {
		if c.ExpirationDate == "" {
			c.ExpirationDate = date
		}
	}
	return chains, nil
}

func SaveOptionChains(path string, chains map[string]*OptionChain) error {
	data, err := json.MarshalIndent(chains, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

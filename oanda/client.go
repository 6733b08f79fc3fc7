package oanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
)

var ErrMissingAccount = errors.New("oanda account id is required")

// Client is a read-only OANDA v20 REST client for prices and instrument
// metadata.
type Client struct {
	baseURL    string
	token      string
	account    string
	httpClient *http.Client
}

// NewClient creates a new OANDA API client
func NewClient(token, account string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		account: account,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL points the client at another host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// Price is one instrument's top of book.
type Price struct {
	Instrument string
	Time       time.Time
	Bid        float64
	Ask        float64
	Tradeable  bool
}

type priceBucket struct {
	Price string `json:"price"`
}

type apiPrice struct {
	Instrument  string        `json:"instrument"`
	Time        string        `json:"time"`
	Tradeable   bool          `json:"tradeable"`
	Bids        []priceBucket `json:"bids"`
	Asks        []priceBucket `json:"asks"`
	CloseoutBid string        `json:"closeoutBid"`
	CloseoutAsk string        `json:"closeoutAsk"`
}

type pricingResponse struct {
	Prices []apiPrice `json:"prices"`
}

// GetPricing returns the current prices of instruments.
func (c *Client) GetPricing(ctx context.Context, instruments ...string) ([]Price, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("at least one instrument is required")
	}

	params := url.Values{}
	params.Set("instruments", strings.Join(instruments, ","))

	var resp pricingResponse
	if err := c.get(ctx, "pricing", params, &resp); err != nil {
		return nil, err
	}

	out := make([]Price, 0, len(resp.Prices))
	for _, ap := range resp.Prices {
		p, err := ap.convert()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ap.Instrument, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (ap apiPrice) convert() (Price, error) {
	t, err := time.Parse(time.RFC3339Nano, ap.Time)
	if err != nil {
		return Price{}, fmt.Errorf("parse time %s: %w", ap.Time, err)
	}

	bid, ask := ap.CloseoutBid, ap.CloseoutAsk
	if len(ap.Bids) > 0 {
		bid = ap.Bids[0].Price
	}
	if len(ap.Asks) > 0 {
		ask = ap.Asks[0].Price
	}

	b, err := parseFloat(bid)
	if err != nil {
		return Price{}, fmt.Errorf("parse bid: %w", err)
	}
	a, err := parseFloat(ask)
	if err != nil {
		return Price{}, fmt.Errorf("parse ask: %w", err)
	}

	return Price{
		Instrument: ap.Instrument,
		Time:       t.UTC(),
		Bid:        b,
		Ask:        a,
		Tradeable:  ap.Tradeable,
	}, nil
}

// Instrument is the subset of OANDA instrument metadata used for sizing.
type Instrument struct {
	Name                string
	DisplayName         string
	Type                string
	MinimumTradeSize    float64
	TradeUnitsPrecision int
}

type apiInstrument struct {
	Name                string `json:"name"`
	DisplayName         string `json:"displayName"`
	Type                string `json:"type"`
	MinimumTradeSize    string `json:"minimumTradeSize"`
	TradeUnitsPrecision int    `json:"tradeUnitsPrecision"`
}

type instrumentsResponse struct {
	Instruments []apiInstrument `json:"instruments"`
}

// GetInstruments lists the instruments tradeable by the account.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, error) {
	var resp instrumentsResponse
	if err := c.get(ctx, "instruments", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]Instrument, 0, len(resp.Instruments))
	for _, ai := range resp.Instruments {
		minSize, err := parseFloat(ai.MinimumTradeSize)
		if err != nil {
			return nil, fmt.Errorf("%s: parse minimumTradeSize: %w", ai.Name, err)
		}
		out = append(out, Instrument{
			Name:                ai.Name,
			DisplayName:         ai.DisplayName,
			Type:                ai.Type,
			MinimumTradeSize:    minSize,
			TradeUnitsPrecision: ai.TradeUnitsPrecision,
		})
	}
	return out, nil
}

// get fetches /v3/accounts/{account}/{resource} and decodes the JSON body
// into out.
func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) error {
	if c.account == "" {
		return ErrMissingAccount
	}

	apiURL := fmt.Sprintf("%s/v3/accounts/%s/%s", c.baseURL, url.PathEscape(c.account), resource)
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseFloat parses an OANDA decimal string.
func parseFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradescan/internal/cache"
	httpClient "tradescan/internal/platform/http"
	"tradescan/models"
)

// Client is the CoinGecko API client. All three accessors are
// cache-aside: a fresh cache entry short-circuits the network call, and
// every successful fetch writes through.
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
	cache      *cache.Cache
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new CoinGecko client
type ClientOptions struct {
	BaseURL        string
	CallsPerMinute int
	RequestTimeout time.Duration
	MaxAttempts    int
	Cache          *cache.Cache
}

// NewClient creates a new CoinGecko API client
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = "https://api.coingecko.com/api/v3"
	}

	return &Client{
		baseURL: options.BaseURL,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			CallsPerMinute: options.CallsPerMinute,
			MaxAttempts:    options.MaxAttempts,
		}),
		cache:  options.Cache,
		logger: log.With().Str("component", "coingecko_client").Logger(),
	}
}

// coinMarketsItem mirrors one element of the coins/markets response.
type coinMarketsItem struct {
	ID             string   `json:"id"`
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	MarketCapRank  *int     `json:"market_cap_rank"`
	CurrentPrice   float64  `json:"current_price"`
	PriceChange24h *float64 `json:"price_change_percentage_24h"`
	TotalVolume    *float64 `json:"total_volume"`
	MarketCap      *float64 `json:"market_cap"`
	ATH            *float64 `json:"ath"`
	ATL            *float64 `json:"atl"`
}

// coinDetailResponse mirrors the market_data part of the coins/{id}
// response; nested objects are keyed by currency code.
type coinDetailResponse struct {
	MarketData *struct {
		ATH          map[string]float64 `json:"ath"`
		ATHDate      map[string]string  `json:"ath_date"`
		ATL          map[string]float64 `json:"atl"`
		ATLDate      map[string]string  `json:"atl_date"`
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}

// GetTopCoins fetches the top coins by market capitalization, ordered by
// ascending rank.
func (c *Client) GetTopCoins(ctx context.Context, limit int, useCache bool) ([]models.CoinInfo, error) {
	cacheKey := fmt.Sprintf("top_coins:%d", limit)

	if useCache {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if coins, ok := cached.([]models.CoinInfo); ok {
				c.logger.Debug().Int("count", len(coins)).Msg("Retrieved top coins from cache")
				return coins, nil
			}
		}
	}

	c.logger.Info().Int("limit", limit).Msg("Fetching top coins from CoinGecko")

	perPage := limit
	if perPage > 250 {
		perPage = 250
	}
	params := url.Values{
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"per_page":    {strconv.Itoa(perPage)},
		"page":        {"1"},
		"sparkline":   {"false"},
	}

	body, err := c.get(ctx, "coins/markets", params)
	if err != nil {
		return nil, err
	}

	var items []coinMarketsItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parsing top coins response: %w", err)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	coins := make([]models.CoinInfo, 0, len(items))
	for _, item := range items {
		coins = append(coins, models.CoinInfo{
			ID:            item.ID,
			Symbol:        strings.ToUpper(item.Symbol),
			Name:          item.Name,
			MarketCapRank: item.MarketCapRank,
		})
	}

	c.cache.Set(cacheKey, coins)
	c.logger.Info().Int("count", len(coins)).Msg("Fetched top coins")
	return coins, nil
}

// GetCoinATHATL fetches the all-time high/low record for one coin.
// Records violating ATH > ATL > 0 are rejected rather than returned.
func (c *Client) GetCoinATHATL(ctx context.Context, coinID string, useCache bool) (*models.ATHATLData, error) {
	cacheKey := fmt.Sprintf("ath_atl:%s", coinID)

	if useCache {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if data, ok := cached.(*models.ATHATLData); ok {
				c.logger.Debug().Str("coin", coinID).Msg("Retrieved ATH/ATL from cache")
				return data, nil
			}
		}
	}

	c.logger.Debug().Str("coin", coinID).Msg("Fetching ATH/ATL data")

	params := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"market_data":    {"true"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}

	body, err := c.get(ctx, "coins/"+coinID, params)
	if err != nil {
		return nil, err
	}

	var detail coinDetailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing coin detail response: %w", err)
	}
	if detail.MarketData == nil {
		return nil, fmt.Errorf("coin detail for %s has no market_data", coinID)
	}

	md := detail.MarketData
	data, err := models.NewATHATLData(
		md.ATH["usd"],
		md.ATL["usd"],
		md.CurrentPrice["usd"],
		parseISODate(md.ATHDate["usd"]),
		parseISODate(md.ATLDate["usd"]),
	)
	if err != nil {
		return nil, fmt.Errorf("ath/atl data for %s: %w", coinID, err)
	}

	c.cache.Set(cacheKey, data)
	c.logger.Debug().
		Str("coin", coinID).
		Float64("ath", data.ATH).
		Float64("atl", data.ATL).
		Msg("Fetched ATH/ATL data")
	return data, nil
}

// GetCoinMarketData fetches the market snapshot for one coin.
func (c *Client) GetCoinMarketData(ctx context.Context, coinID string, useCache bool) (*models.CoinMarketData, error) {
	cacheKey := fmt.Sprintf("market_data:%s", coinID)

	if useCache {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if data, ok := cached.(*models.CoinMarketData); ok {
				c.logger.Debug().Str("coin", coinID).Msg("Retrieved market data from cache")
				return data, nil
			}
		}
	}

	params := url.Values{
		"ids":         {coinID},
		"vs_currency": {"usd"},
		"order":       {"market_cap_desc"},
		"sparkline":   {"false"},
	}

	body, err := c.get(ctx, "coins/markets", params)
	if err != nil {
		return nil, err
	}

	var items []coinMarketsItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("parsing market data response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no market data returned for %s", coinID)
	}

	item := items[0]
	data := &models.CoinMarketData{
		Symbol:        strings.ToUpper(item.Symbol),
		Name:          item.Name,
		CurrentPrice:  item.CurrentPrice,
		Volume24h:     item.TotalVolume,
		MarketCap:     item.MarketCap,
		MarketCapRank: item.MarketCapRank,
		ATH:           item.ATH,
		ATL:           item.ATL,
	}
	if item.PriceChange24h != nil {
		data.PriceChange24h = *item.PriceChange24h
	}

	c.cache.Set(cacheKey, data)
	return data, nil
}

// get performs a GET against the API and returns the response body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Trade-Scan/1.0")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// parseISODate parses an ISO-8601 timestamp (trailing "Z" included).
// Absent or malformed dates map to nil rather than an error.
func parseISODate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

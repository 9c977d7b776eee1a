package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const routesPath = "/advanced/routes"

var microPerUnit = decimal.NewFromInt(1_000_000)

// LiFiOptions parameterise the LI.FI client.
type LiFiOptions struct {
	BaseURL     string
	Integrator  string
	SlippagePct float64
	Timeout     time.Duration
	UserAgent   string
}

// LiFi fetches candidate routes from the LI.FI aggregator.
type LiFi struct {
	opts    LiFiOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewLiFi constructs a LI.FI route quoter.
func NewLiFi(opts LiFiOptions, logger zerolog.Logger) *LiFi {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://li.quest/v1"
	}

	return &LiFi{
		opts:    opts,
		logger:  logger.With().Str("component", "lifi_quoter").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Routes queries LI.FI and returns candidates in recommended order.
func (l *LiFi) Routes(ctx context.Context, req Request) ([]Quote, error) {
	if req.AmountMicro <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrNoRoute)
	}
	if req.FromToken == "" || req.ToToken == "" {
		return nil, fmt.Errorf("%w: token addresses required", ErrNoRoute)
	}

	slippage := l.opts.SlippagePct
	if slippage <= 0 {
		slippage = 3.0
	}

	payload := routesRequest{
		FromChainID:      req.FromChainID,
		ToChainID:        req.ToChainID,
		FromTokenAddress: req.FromToken,
		ToTokenAddress:   req.ToToken,
		FromAmount:       strconv.FormatInt(req.AmountMicro, 10),
		FromAddress:      req.FromAddress,
		ToAddress:        req.ToAddress,
		Options: routesOptions{
			Order:      "RECOMMENDED",
			Slippage:   slippage / 100,
			Integrator: l.opts.Integrator,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal routes request: %w", err)
	}

	endpoint := l.baseURL + routesPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create routes request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNoRoute, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, parseHTTPError(resp.StatusCode, payloadBytes))
	}

	var routesRes routesResponse
	if err := json.Unmarshal(payloadBytes, &routesRes); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrNoRoute, err)
	}

	if len(routesRes.Routes) == 0 {
		return nil, ErrNoRoute
	}

	quotes := make([]Quote, 0, len(routesRes.Routes))
	for _, r := range routesRes.Routes {
		quote, convErr := convertRoute(r)
		if convErr != nil {
			l.logger.Warn().Err(convErr).Msg("skipping unparseable route candidate")
			continue
		}
		quotes = append(quotes, quote)
	}
	if len(quotes) == 0 {
		return nil, ErrNoRoute
	}

	return quotes, nil
}

func convertRoute(r routePayload) (Quote, error) {
	steps := make([]Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		tool := s.ToolDetails.Name
		if tool == "" {
			tool = s.Tool
		}
		steps = append(steps, Step{
			Tool:            tool,
			DurationSeconds: s.Estimate.ExecutionDuration,
		})
	}

	costMicro := int64(0)
	if r.GasCostUSD != "" {
		cost, err := decimal.NewFromString(r.GasCostUSD)
		if err != nil {
			return Quote{}, fmt.Errorf("parse gas cost %q: %w", r.GasCostUSD, err)
		}
		costMicro = cost.Mul(microPerUnit).Round(0).IntPart()
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return Quote{}, fmt.Errorf("marshal route payload: %w", err)
	}

	return Quote{Steps: steps, EstimatedCostMicro: costMicro, Raw: raw}, nil
}

type routesRequest struct {
	FromChainID      int64         `json:"fromChainId"`
	ToChainID        int64         `json:"toChainId"`
	FromTokenAddress string        `json:"fromTokenAddress"`
	ToTokenAddress   string        `json:"toTokenAddress"`
	FromAmount       string        `json:"fromAmount"`
	FromAddress      string        `json:"fromAddress,omitempty"`
	ToAddress        string        `json:"toAddress,omitempty"`
	Options          routesOptions `json:"options"`
}

type routesOptions struct {
	Order      string  `json:"order"`
	Slippage   float64 `json:"slippage"`
	Integrator string  `json:"integrator,omitempty"`
}

type routesResponse struct {
	Routes []routePayload `json:"routes"`
}

type routePayload struct {
	ID         string        `json:"id"`
	GasCostUSD string        `json:"gasCostUSD"`
	Steps      []stepPayload `json:"steps"`
}

type stepPayload struct {
	Tool        string `json:"tool"`
	ToolDetails struct {
		Name string `json:"name"`
	} `json:"toolDetails"`
	Estimate struct {
		ExecutionDuration int64 `json:"executionDuration"`
	} `json:"estimate"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("lifi api error (%d): %s", status, apiErr.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("lifi api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("lifi api error (%d)", status)
}

var _ Quoter = (*LiFi)(nil)

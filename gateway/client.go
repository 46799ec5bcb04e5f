package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	payPathModern    = "/checkout/v2/pay"
	payPathLegacy    = "/pg/v1/pay"
	statusPathModern = "/checkout/v2/order/%s/status" // merchantOrderId
	statusPathLegacy = "/pg/v1/status/%s/%s"          // merchantId, transactionId
)

// Config carries everything needed to talk to the payment provider. The
// provider has migrated API generations over time, so both the current base
// URL and the legacy one are kept, along with an ordered list of candidate
// token endpoints.
type Config struct {
	BaseURL       string // current-generation API base
	LegacyBaseURL string // legacy signed-payload API base
	MerchantID    string
	SaltKey       string
	SaltIndex     string
	ClientID      string
	ClientSecret  string
	ClientVersion string
	AuthEndpoints []string // token URLs tried in priority order
	Timeout       time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	tokens *TokenCache
	logger *zap.Logger
}

type InitiationRequest struct {
	TransactionID string
	OrderID       string
	Amount        int64 // minor units
	RedirectURL   string
	CallbackURL   string
	Phone         string
}

type InitiationResult struct {
	RedirectURL   string
	TransactionID string
}

type StatusResult struct {
	Status Status
	Raw    map[string]interface{}
}

func NewClient(cfg Config, tokens *TokenCache, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if len(cfg.AuthEndpoints) == 0 {
		cfg.AuthEndpoints = []string{
			"https://api.phonepe.com/apis/identity-manager/v1/oauth/token",
			strings.TrimSuffix(cfg.BaseURL, "/") + "/v1/oauth/token",
		}
	}
	if tokens == nil {
		tokens = NewTokenCache()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: tokens,
		logger: logger,
	}
}

// AcquireToken returns a cached bearer token while it is fresh, otherwise
// exchanges client credentials against each candidate endpoint in order.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(); ok {
		return tok, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", &AuthError{Reason: "client credentials not configured"}
	}

	var lastErr error
	for _, endpoint := range c.cfg.AuthEndpoints {
		tok, expiresAt, err := c.fetchToken(ctx, endpoint)
		if err != nil {
			c.logger.Warn("token endpoint failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		c.tokens.Set(tok, expiresAt)
		return tok, nil
	}
	return "", &AuthError{Reason: "all token endpoints failed", Err: lastErr}
}

func (c *Client) fetchToken(ctx context.Context, endpoint string) (string, time.Time, error) {
	form := url.Values{
		"client_id":      {c.cfg.ClientID},
		"client_secret":  {c.cfg.ClientSecret},
		"client_version": {c.cfg.ClientVersion},
		"grant_type":     {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, &TransientError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, &GatewayError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	// Token responses have drifted across provider generations; accept both
	// the absolute-expiry and relative-expiry shapes.
	var tok struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
		ExpiresAt   int64  `json:"expires_at"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	value := tok.AccessToken
	if value == "" {
		value = tok.Token
	}
	if value == "" {
		return "", time.Time{}, &GatewayError{StatusCode: resp.StatusCode, Body: truncate(body)}
	}

	var expiresAt time.Time
	switch {
	case tok.ExpiresAt > 0:
		expiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	default:
		expiresAt = time.Now().Add(10 * time.Minute)
	}
	return value, expiresAt, nil
}

// InitiatePayment registers the transaction with the provider and returns the
// hosted checkout URL. The current-generation endpoint is tried first; an
// endpoint-not-found response falls back once to the legacy signed endpoint,
// which uses a different payload shape and signing scheme.
func (c *Client) InitiatePayment(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	res, err := c.initiateModern(ctx, req)
	if err == nil {
		return res, nil
	}

	var ge *GatewayError
	if errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound {
		c.logger.Warn("checkout endpoint not found, falling back to legacy pay endpoint",
			zap.String("transaction_id", req.TransactionID),
		)
		return c.initiateLegacy(ctx, req)
	}
	return nil, err
}

func (c *Client) initiateModern(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	// The current-generation API keys the transaction by merchant order id;
	// our internal transaction id rides along in metaInfo for correlation.
	payload := map[string]interface{}{
		"merchantOrderId": req.OrderID,
		"amount":          req.Amount,
		"metaInfo": map[string]string{
			"udf1": req.TransactionID,
		},
		"paymentFlow": map[string]interface{}{
			"type": "PG_CHECKOUT",
			"merchantUrls": map[string]string{
				"redirectUrl": req.RedirectURL,
			},
		},
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+payPathModern, payload, map[string]string{
		"Authorization": "O-Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, raw)
	}

	redirect, _ := lookupString(raw, []string{"redirectUrl"})
	if redirect == "" {
		return nil, &GatewayError{StatusCode: status, Body: rawBody(raw)}
	}
	return &InitiationResult{RedirectURL: redirect, TransactionID: req.TransactionID}, nil
}

func (c *Client) initiateLegacy(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	payload := map[string]interface{}{
		"merchantId":            c.cfg.MerchantID,
		"merchantTransactionId": req.TransactionID,
		"merchantUserId":        "USER_" + req.OrderID,
		"amount":                req.Amount,
		"redirectUrl":           req.RedirectURL,
		"redirectMode":          "REDIRECT",
		"callbackUrl":           req.CallbackURL,
		"mobileNumber":          req.Phone,
		"paymentInstrument": map[string]string{
			"type": "PAY_PAGE",
		},
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	payloadBase64 := base64.StdEncoding.EncodeToString(payloadJSON)
	signature := SignPayload(payloadBase64, payPathLegacy, c.cfg.SaltKey, c.cfg.SaltIndex)

	status, raw, err := c.doJSON(ctx, http.MethodPost, c.cfg.LegacyBaseURL+payPathLegacy,
		map[string]string{"request": payloadBase64},
		map[string]string{"X-VERIFY": signature},
	)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, raw)
	}

	redirect, _ := lookupString(raw, []string{"data", "instrumentResponse", "redirectInfo", "url"})
	if redirect == "" {
		return nil, &GatewayError{StatusCode: status, Body: rawBody(raw)}
	}
	return &InitiationResult{RedirectURL: redirect, TransactionID: req.TransactionID}, nil
}

// QueryStatus asks the provider for the current transaction state. The
// current-generation endpoint (keyed by merchant order id) is tried first
// when that key is known; any failure there falls through to the legacy
// endpoint keyed by (merchantId, transactionId).
func (c *Client) QueryStatus(ctx context.Context, transactionID, merchantOrderID string) (*StatusResult, error) {
	var attempts []string

	if merchantOrderID != "" {
		res, err := c.queryStatusModern(ctx, merchantOrderID)
		if err == nil {
			return res, nil
		}
		attempts = append(attempts, fmt.Sprintf("modern: %v", err))
		c.logger.Warn("modern status endpoint failed, trying legacy",
			zap.String("merchant_order_id", merchantOrderID),
			zap.Error(err),
		)
	}

	res, err := c.queryStatusLegacy(ctx, transactionID)
	if err == nil {
		return res, nil
	}
	attempts = append(attempts, fmt.Sprintf("legacy: %v", err))

	var transient *TransientError
	if errors.As(err, &transient) {
		return nil, err
	}
	return nil, fmt.Errorf("status query exhausted all endpoints (%s): %w", strings.Join(attempts, "; "), err)
}

func (c *Client) queryStatusModern(ctx context.Context, merchantOrderID string) (*StatusResult, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.cfg.BaseURL + fmt.Sprintf(statusPathModern, url.PathEscape(merchantOrderID))
	status, raw, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, map[string]string{
		"Authorization": "O-Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, raw)
	}
	return &StatusResult{Status: Classify(raw), Raw: raw}, nil
}

func (c *Client) queryStatusLegacy(ctx context.Context, transactionID string) (*StatusResult, error) {
	path := fmt.Sprintf(statusPathLegacy, c.cfg.MerchantID, transactionID)
	signature := SignPayload("", path, c.cfg.SaltKey, c.cfg.SaltIndex)

	status, raw, err := c.doJSON(ctx, http.MethodGet, c.cfg.LegacyBaseURL+path, nil, map[string]string{
		"X-VERIFY":      signature,
		"X-MERCHANT-ID": c.cfg.MerchantID,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, responseError(status, raw)
	}
	return &StatusResult{Status: Classify(raw), Raw: raw}, nil
}

// doJSON performs one HTTP exchange and decodes the JSON body. Network errors
// and 5xx responses come back as TransientError; everything else is returned
// with its status code for the caller to interpret.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload interface{}, headers map[string]string) (int, map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransientError{Err: err}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, nil, &TransientError{
			Err: &GatewayError{StatusCode: resp.StatusCode, Body: truncate(data)},
		}
	}

	raw := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			raw = map[string]interface{}{"raw": string(data)}
		}
	}
	return resp.StatusCode, raw, nil
}

func responseError(status int, raw map[string]interface{}) error {
	return &GatewayError{StatusCode: status, Body: rawBody(raw)}
}

func rawBody(raw map[string]interface{}) string {
	data, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	return truncate(data)
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

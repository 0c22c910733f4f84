package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LiminalClient is the provider adapter for Liminal custody (§4.2, §4.6).
// Raw status codes are small integers (see statusmap's vocabulary table).
type LiminalClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewLiminalClient constructs an uninitialized client; call Init before use.
func NewLiminalClient(baseURL string) *LiminalClient {
	return &LiminalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *LiminalClient) Name() string { return Liminal }

// Init reads the "api_key" and "api_secret" credentials; both are required.
func (c *LiminalClient) Init(credentials map[string]string) error {
	apiKey, ok := credentials["api_key"]
	if !ok || apiKey == "" {
		return errMissingCredential(Liminal, "api_key")
	}
	apiSecret, ok := credentials["api_secret"]
	if !ok || apiSecret == "" {
		return errMissingCredential(Liminal, "api_secret")
	}
	c.apiKey = apiKey
	c.apiSecret = apiSecret
	return nil
}

func (c *LiminalClient) GetTokenBalance(ctx context.Context, token TokenInfo) (string, error) {
	walletID, err := liminalWalletID(token.WalletConfig)
	if err != nil {
		return "", err
	}
	var out struct {
		Balance string `json:"balance"`
	}
	path := fmt.Sprintf("/v2/wallets/%s/assets/%s/balance", walletID, token.Symbol)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Balance, nil
}

func (c *LiminalClient) CreateTransferRequest(ctx context.Context, req TransferRequest) (TransferResponse, error) {
	walletID, err := liminalWalletID(req.ColdWalletConfig)
	if err != nil {
		return TransferResponse{}, err
	}
	body := map[string]interface{}{
		"source_wallet_id": walletID,
		"destination":      req.HotWalletAddress,
		"asset":            req.AssetSymbol,
		"chain":            req.ChainSymbol,
		"amount":           req.AmountDecimal,
		"external_tx_id":   req.ExternalTxID,
	}
	var out struct {
		ID        string `json:"id"`
		Status    int    `json:"status"`
		Note      string `json:"note"`
		CreatedAt string `json:"created_at"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/transfers", body, &out); err != nil {
		return TransferResponse{}, err
	}
	return TransferResponse{
		ProviderTxID: out.ID,
		RawStatus:    fmt.Sprintf("%d", out.Status),
		Message:      out.Note,
		ExternalTxID: req.ExternalTxID,
		CreatedAt:    out.CreatedAt,
		Raw:          map[string]interface{}{"id": out.ID, "status": out.Status, "note": out.Note, "created_at": out.CreatedAt},
	}, nil
}

func (c *LiminalClient) GetTransactionByID(ctx context.Context, providerTxID string, _ TokenInfo) (RawTransaction, error) {
	var out struct {
		ID     string `json:"id"`
		Status int    `json:"status"`
		TxHash string `json:"tx_hash"`
		Note   string `json:"note"`
	}
	path := fmt.Sprintf("/v2/transfers/%s", providerTxID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return RawTransaction{}, err
	}
	return RawTransaction{
		ProviderTxID: out.ID,
		RawStatus:    fmt.Sprintf("%d", out.Status),
		TxHash:       out.TxHash,
		Message:      out.Note,
		Raw:          map[string]interface{}{"id": out.ID, "status": out.Status, "tx_hash": out.TxHash, "note": out.Note},
	}, nil
}

func (c *LiminalClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("liminal: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("liminal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-API-Secret", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("liminal: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("liminal: request to %s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("liminal: decode response: %w", err)
	}
	return nil
}

func liminalWalletID(cfg map[string]interface{}) (string, error) {
	sub, ok := cfg[Liminal].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("liminal: wallet_config missing liminal identifier bag")
	}
	id, ok := sub["wallet_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("liminal: wallet_config missing wallet_id")
	}
	return id, nil
}

package attestation

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/vaa"
)

// DeliveryStatus is the relay state of an automatic transfer as reported by
// the attestation API.
type DeliveryStatus struct {
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
	ToTxHash string `json:"toTxHash,omitempty"`
}

// Delivered reports whether the relayer executed the delivery.
func (s *DeliveryStatus) Delivered() bool {
	return strings.EqualFold(s.Status, "success") || strings.EqualFold(s.Status, "delivered")
}

// Failed reports whether the relay ended without delivering.
func (s *DeliveryStatus) Failed() bool {
	return strings.EqualFold(s.Status, "failed") || strings.EqualFold(s.Status, "receiver failure")
}

// TransactionStatus describes the destination side of a message.
type TransactionStatus struct {
	DestinationChain uint16
	DestinationTx    string
	Status           string
}

type vaaResponse struct {
	Data struct {
		VAA []byte `json:"vaa"`
	} `json:"data"`
}

type relayResponse struct {
	Data struct {
		Delivery struct {
			Execution struct {
				Status string `json:"status"`
				Detail string `json:"detail"`
			} `json:"execution"`
		} `json:"delivery"`
		ToTxHash string `json:"toTxHash"`
	} `json:"data"`
}

type transactionResponse struct {
	GlobalTx *struct {
		DestinationTx *struct {
			ChainID uint16 `json:"chainId"`
			Status  string `json:"status"`
			TxHash  string `json:"txHash"`
		} `json:"destinationTx"`
	} `json:"globalTx"`
}

// APIClient talks to a wormholescan-style attestation API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewAPIClient(logger *zap.Logger, baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(zap.String("component", "APIClient")),
	}
}

func messagePath(id vaa.MessageID) string {
	return fmt.Sprintf("%d/%s/%d", uint16(id.Chain), hex.EncodeToString(id.Emitter[:]), id.Sequence)
}

// GetVAA returns the signed VAA bytes for id, or found=false while it is not
// yet available.
func (c *APIClient) GetVAA(ctx context.Context, id vaa.MessageID) ([]byte, bool, error) {
	var resp vaaResponse
	found, err := c.get(ctx, "/api/v1/vaas/"+messagePath(id), &resp)
	if err != nil || !found {
		return nil, false, err
	}
	if len(resp.Data.VAA) == 0 {
		return nil, false, nil
	}
	return resp.Data.VAA, true, nil
}

// GetDeliveryStatus returns the relay status of an automatic transfer.
func (c *APIClient) GetDeliveryStatus(ctx context.Context, id vaa.MessageID) (*DeliveryStatus, bool, error) {
	var resp relayResponse
	found, err := c.get(ctx, "/v1/relays/"+messagePath(id), &resp)
	if err != nil || !found {
		return nil, false, err
	}
	exec := resp.Data.Delivery.Execution
	if exec.Status == "" {
		return nil, false, nil
	}
	return &DeliveryStatus{Status: exec.Status, Detail: exec.Detail, ToTxHash: resp.Data.ToTxHash}, true, nil
}

// GetTransactionStatus returns the destination transaction recorded for id.
func (c *APIClient) GetTransactionStatus(ctx context.Context, id vaa.MessageID) (*TransactionStatus, bool, error) {
	var resp transactionResponse
	found, err := c.get(ctx, "/api/v1/transactions/"+messagePath(id), &resp)
	if err != nil || !found {
		return nil, false, err
	}
	if resp.GlobalTx == nil || resp.GlobalTx.DestinationTx == nil || resp.GlobalTx.DestinationTx.TxHash == "" {
		return nil, false, nil
	}
	dst := resp.GlobalTx.DestinationTx
	return &TransactionStatus{DestinationChain: dst.ChainID, DestinationTx: dst.TxHash, Status: dst.Status}, true, nil
}

// get decodes a JSON response into out. A 404 reports found=false.
func (c *APIClient) get(ctx context.Context, path string, out any) (bool, error) {
	return getJSON(ctx, c.httpClient, c.logger, c.baseURL+path, out)
}

func getJSON(ctx context.Context, httpClient *http.Client, logger *zap.Logger, url string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Received response", zap.String("url", url), zap.Int("statusCode", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return true, nil
}

package attestation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

type circleResponse struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation"`
}

// CircleClient fetches CCTP attestations from Circle's attestation service.
type CircleClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewCircleClient(logger *zap.Logger, baseURL string) *CircleClient {
	return &CircleClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(zap.String("component", "CircleClient")),
	}
}

// GetAttestation returns the attestation for a burn message hash once its
// status is complete.
func (c *CircleClient) GetAttestation(ctx context.Context, messageHash common.Hash) ([]byte, bool, error) {
	var resp circleResponse
	found, err := getJSON(ctx, c.httpClient, c.logger, c.baseURL+"/v1/attestations/"+messageHash.Hex(), &resp)
	if err != nil || !found {
		return nil, false, err
	}
	if resp.Status != "complete" || resp.Attestation == "" {
		c.logger.Debug("Attestation pending", zap.String("hash", messageHash.Hex()), zap.String("status", resp.Status))
		return nil, false, nil
	}
	att, err := hexutil.Decode(resp.Attestation)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode attestation: %w", err)
	}
	return att, true, nil
}

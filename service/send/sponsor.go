package send

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/fanout/service/metrics"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// SponsorClient talks to an external fee sponsorship service. The service
// receives an unsigned transaction and returns the same transaction
// countersigned by the sponsor as fee payer; the sender still adds its own
// signature before submission.
//
// Every failure mode (transport error, non-2xx status, malformed body, or an
// explicit service error) is reported as *SponsorshipUnavailableError so the
// orchestrator can decide whether to fall back to self-paid submission.
type SponsorClient struct {
	baseURL    string
	policy     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewSponsorClient creates a sponsorship client. policy identifies the
// sponsorship policy with the service. If httpClient is nil, a client with a
// 30s timeout is used.
func NewSponsorClient(baseURL, policy string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *SponsorClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SponsorClient{
		baseURL:    baseURL,
		policy:     policy,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

type sponsorRequest struct {
	Policy      string `json:"policy"`
	Transaction string `json:"transaction"`
}

type sponsorResponse struct {
	Transaction string `json:"transaction"`
	Error       string `json:"error,omitempty"`
}

// RequestSponsorship serializes tx without any signatures, posts it to the
// sponsorship service, and returns the sponsor-countersigned transaction.
func (c *SponsorClient) RequestSponsorship(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	start := time.Now()
	sponsored, err := c.requestSponsorship(ctx, tx)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "unavailable"
		}
		c.metrics.RecordSponsorship(status, time.Since(start).Seconds())
	}
	return sponsored, err
}

func (c *SponsorClient) requestSponsorship(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	// The service countersigns the message; any signatures we already hold
	// are stripped before serialization.
	tx.Signatures = nil
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, &SponsorshipUnavailableError{Reason: fmt.Sprintf("serialize transaction: %v", err)}
	}

	body, err := json.Marshal(sponsorRequest{
		Policy:      c.policy,
		Transaction: base64.StdEncoding.EncodeToString(raw),
	})
	if err != nil {
		return nil, &SponsorshipUnavailableError{Reason: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/sponsor", bytes.NewReader(body))
	if err != nil {
		return nil, &SponsorshipUnavailableError{Reason: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SponsorshipUnavailableError{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var parsed sponsorResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &SponsorshipUnavailableError{
			Reason: fmt.Sprintf("malformed response (status %d): %s", resp.StatusCode, string(respBody)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		reason := parsed.Error
		if reason == "" {
			reason = string(respBody)
		}
		return nil, &SponsorshipUnavailableError{
			Reason: fmt.Sprintf("service returned status %d: %s", resp.StatusCode, reason),
		}
	}
	if parsed.Error != "" {
		return nil, &SponsorshipUnavailableError{Reason: parsed.Error}
	}
	if parsed.Transaction == "" {
		return nil, &SponsorshipUnavailableError{Reason: "response missing sponsored transaction"}
	}

	sponsoredRaw, err := base64.StdEncoding.DecodeString(parsed.Transaction)
	if err != nil {
		return nil, &SponsorshipUnavailableError{Reason: fmt.Sprintf("decode sponsored transaction: %v", err)}
	}
	sponsored, err := solana.TransactionFromDecoder(bin.NewBinDecoder(sponsoredRaw))
	if err != nil {
		return nil, &SponsorshipUnavailableError{Reason: fmt.Sprintf("parse sponsored transaction: %v", err)}
	}

	c.logger.DebugContext(ctx, "transaction sponsored", "policy", c.policy)
	return sponsored, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/logger"
)

// DNSClient talks to the Cloudflare-compatible DNS provider that maps
// booking domains to the platform's public IP. When the integration is
// disabled the lifecycle manager skips all DNS calls.
type DNSClient struct {
	baseURL    string
	apiToken   string
	zoneID     string
	enabled    bool
	httpClient *http.Client
}

// NewDNSClient creates a new DNS client. The integration counts as
// enabled only when the flag, token and zone are all present.
func NewDNSClient(baseURL, apiToken, zoneID string, enabled bool) *DNSClient {
	return &DNSClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		zoneID:   zoneID,
		enabled:  enabled && apiToken != "" && zoneID != "",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsEnabled reports whether DNS integration is active.
func (c *DNSClient) IsEnabled() bool {
	return c.enabled
}

type dnsRecordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

type dnsRecordResponse struct {
	Success bool `json:"success"`
	Result  struct {
		ID string `json:"id"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateRecord creates a proxied A record for domain pointing at targetIP
// and returns the provider's record ID.
func (c *DNSClient) CreateRecord(ctx context.Context, domain, targetIP string) (string, error) {
	body, err := json.Marshal(dnsRecordRequest{
		Type:    "A",
		Name:    domain,
		Content: targetIP,
		Proxied: true,
		TTL:     1, // automatic
	})
	if err != nil {
		return "", fmt.Errorf("marshal dns record request: %w", err)
	}

	url := fmt.Sprintf("%s/zones/%s/dns_records", c.baseURL, c.zoneID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDNSError, "dns record creation request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", apperrors.Newf(apperrors.CodeAuthError,
			"dns provider rejected credentials (status %d)", resp.StatusCode)
	}

	var result dnsRecordResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode dns response: %w (body: %s)", err, string(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !result.Success {
		msg := string(respBody)
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return "", apperrors.Newf(apperrors.CodeDNSError,
			"dns provider returned status %d: %s", resp.StatusCode, msg)
	}

	logger.L().Info("dns record created",
		zap.String("domain", domain), zap.String("record_id", result.Result.ID))
	return result.Result.ID, nil
}

// DeleteRecord removes a DNS record. Deleting an already-absent record is
// not an error.
func (c *DNSClient) DeleteRecord(ctx context.Context, recordID string) error {
	url := fmt.Sprintf("%s/zones/%s/dns_records/%s", c.baseURL, c.zoneID, recordID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDNSError, "dns record deletion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.L().Info("dns record already absent", zap.String("record_id", recordID))
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.Newf(apperrors.CodeAuthError,
			"dns provider rejected credentials (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return apperrors.Newf(apperrors.CodeDNSError,
			"dns provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	logger.L().Info("dns record deleted", zap.String("record_id", recordID))
	return nil
}

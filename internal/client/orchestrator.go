package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beyondfire/cloud-platform/booking-service/internal/apperrors"
	"github.com/beyondfire/cloud-platform/booking-service/internal/logger"
)

// OrchestratorClient talks to the Portainer-compatible container
// orchestration API that runs customer stacks. It caches the session token
// and transparently re-authenticates once when the API rejects it.
type OrchestratorClient struct {
	baseURL      string
	username     string
	password     string
	endpointName string
	httpClient   *http.Client

	mu         sync.Mutex
	token      string
	endpointID int
}

// NewOrchestratorClient creates a new orchestrator client.
func NewOrchestratorClient(baseURL, username, password, endpointName string) *OrchestratorClient {
	return &OrchestratorClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		username:     username,
		password:     password,
		endpointName: endpointName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	JWT string `json:"jwt"`
}

type endpointInfo struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

type stackInfo struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

type createStackRequest struct {
	Name             string `json:"name"`
	StackFileContent string `json:"stackFileContent"`
}

// Authenticate obtains a fresh session token and caches it.
func (c *OrchestratorClient) Authenticate(ctx context.Context) (string, error) {
	body, err := json.Marshal(authRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeAuthError, "orchestrator authentication request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Newf(apperrors.CodeAuthError,
			"orchestrator authentication returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result authResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode auth response: %w (body: %s)", err, string(respBody))
	}
	if result.JWT == "" {
		return "", apperrors.New(apperrors.CodeAuthError, "orchestrator returned an empty session token")
	}

	c.mu.Lock()
	c.token = result.JWT
	c.mu.Unlock()

	logger.L().Info("orchestrator authentication successful")
	return result.JWT, nil
}

// StackExists reports whether a stack with the exact name exists.
func (c *OrchestratorClient) StackExists(ctx context.Context, name string) (bool, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/api/stacks", nil)
	if err != nil {
		return false, err
	}

	var stacks []stackInfo
	if err := json.Unmarshal(respBody, &stacks); err != nil {
		return false, fmt.Errorf("decode stack list: %w", err)
	}

	for _, s := range stacks {
		if s.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateStack deploys a rendered manifest as a standalone stack and
// returns the orchestrator's stack ID.
func (c *OrchestratorClient) CreateStack(ctx context.Context, name, manifest string) (string, error) {
	endpointID, err := c.resolveEndpoint(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(createStackRequest{Name: name, StackFileContent: manifest})
	if err != nil {
		return "", fmt.Errorf("marshal create stack request: %w", err)
	}

	path := fmt.Sprintf("/api/stacks/create/standalone/string?endpointId=%d", endpointID)
	respBody, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}

	var stack stackInfo
	if err := json.Unmarshal(respBody, &stack); err != nil {
		return "", fmt.Errorf("decode create stack response: %w (body: %s)", err, string(respBody))
	}

	stackID := strconv.Itoa(stack.ID)
	logger.L().Info("stack created", zap.String("name", name), zap.String("stack_id", stackID))
	return stackID, nil
}

// DeleteStack removes a stack. Deleting an already-absent stack is not an
// error, so cleanup paths can call it unconditionally.
func (c *OrchestratorClient) DeleteStack(ctx context.Context, stackID string) error {
	endpointID, err := c.resolveEndpoint(ctx)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/api/stacks/%s?endpointId=%d", stackID, endpointID)
	respBody, status, err := c.doStatus(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		logger.L().Info("stack already absent", zap.String("stack_id", stackID))
		return nil
	}
	if status < 200 || status > 299 {
		return apperrors.Newf(apperrors.CodeOrchestratorError,
			"orchestrator returned status %d: %s", status, string(respBody))
	}

	logger.L().Info("stack deleted", zap.String("stack_id", stackID))
	return nil
}

// resolveEndpoint discovers the orchestrator endpoint to deploy against,
// preferring the configured name and caching the result.
func (c *OrchestratorClient) resolveEndpoint(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.endpointID != 0 {
		id := c.endpointID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	respBody, err := c.do(ctx, http.MethodGet, "/api/endpoints", nil)
	if err != nil {
		return 0, err
	}

	var endpoints []endpointInfo
	if err := json.Unmarshal(respBody, &endpoints); err != nil {
		return 0, fmt.Errorf("decode endpoint list: %w", err)
	}
	if len(endpoints) == 0 {
		return 0, apperrors.New(apperrors.CodeOrchestratorError, "orchestrator has no endpoints")
	}

	id := endpoints[0].ID
	for _, e := range endpoints {
		if e.Name == c.endpointName {
			id = e.ID
			break
		}
	}

	c.mu.Lock()
	c.endpointID = id
	c.mu.Unlock()

	logger.L().Info("using orchestrator endpoint", zap.Int("endpoint_id", id))
	return id, nil
}

// do performs an authenticated request and requires a 2xx response.
func (c *OrchestratorClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	respBody, status, err := c.doStatus(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, apperrors.Newf(apperrors.CodeOrchestratorError,
			"orchestrator returned status %d: %s", status, string(respBody))
	}
	return respBody, nil
}

// doStatus performs an authenticated request, re-authenticating once if
// the cached token is rejected, and returns the raw status for callers
// with status-specific semantics (idempotent deletes).
func (c *OrchestratorClient) doStatus(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		var err error
		if token, err = c.Authenticate(ctx); err != nil {
			return nil, 0, err
		}
	}

	respBody, status, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, 0, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if token, err = c.Authenticate(ctx); err != nil {
			return nil, 0, err
		}
		respBody, status, err = c.send(ctx, method, path, body, token)
		if err != nil {
			return nil, 0, err
		}
	}

	return respBody, status, nil
}

func (c *OrchestratorClient) send(ctx context.Context, method, path string, body []byte, token string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.CodeOrchestratorError, "orchestrator request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

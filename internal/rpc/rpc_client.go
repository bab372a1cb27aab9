package rpc

import (
	"context"
	"fmt"
	"net/http"

	"modbot-keeper/internal/logger"
)

// httpClient HTTP客户端实现
type httpClient struct {
	config *HTTPConfig
	client *http.Client
}

/**
 * Create new HTTP client for talking to the keeper daemon
 * @param {HTTPConfig} config - HTTP client configuration, nil uses defaults
 * @returns {HTTPClient} HTTP client interface
 * @description
 * - Resolves the daemon address from the loaded configuration
 * - Configures timeout and connection settings
 */
func NewHTTPClient(config *HTTPConfig) HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}

	return &httpClient{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

/**
 * Send GET request to the keeper daemon
 * @param {string} path - API endpoint path
 * @param {map[string]interface{}} params - Query parameters
 * @returns {HTTPResponse} Response data
 * @returns {error} Error if request fails
 */
func (c *httpClient) Get(path string, params map[string]interface{}) (*HTTPResponse, error) {
	url, err := buildURL(c.config.BaseURL, path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	logger.Debugf("Sending GET request to %s", url)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	httpResp, err := deserializeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}

	return httpResp, nil
}

/**
 * Send POST request to the keeper daemon
 * @param {string} path - API endpoint path
 * @param {interface{}} data - Request body data, nil sends an empty body
 * @returns {HTTPResponse} Response data
 * @returns {error} Error if request fails
 */
func (c *httpClient) Post(path string, data interface{}) (*HTTPResponse, error) {
	url, err := buildURL(c.config.BaseURL, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	body, err := serializeData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data: %w", err)
	}

	logger.Debugf("Sending POST request to %s", url)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	httpResp, err := deserializeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}

	return httpResp, nil
}

// Close 关闭客户端连接
func (c *httpClient) Close() error {
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	logger.Debugf("HTTP client connection closed")
	return nil
}

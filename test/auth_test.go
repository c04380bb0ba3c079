package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// doSignup registers a fresh user and returns its id and session token.
func doSignup(ctx context.Context, t *testing.T, email, password string) authResponse {
	t.Helper()
	return doAuthRequest(ctx, t, "/a/signup", email, password, http.StatusCreated)
}

func doLogin(ctx context.Context, t *testing.T, email, password string) authResponse {
	t.Helper()
	return doAuthRequest(ctx, t, "/a/login", email, password, http.StatusOK)
}

func doAuthRequest(
	ctx context.Context, t *testing.T,
	path, email, password string,
	expectedStatusCode int,
) authResponse {
	t.Helper()

	creds := credentialsRequest{
		Email:    email,
		Password: password,
	}
	credsJson, err := json.Marshal(creds)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+path, bytes.NewBuffer(credsJson))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, expectedStatusCode, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, respBytes)

	var authResp authResponse
	require.NoError(t, json.Unmarshal(respBytes, &authResp))
	require.NotEmpty(t, authResp.Token)
	return authResp
}

// storageRequest builds an authenticated request against the storage API.
func storageRequest(
	ctx context.Context, t *testing.T,
	method, path, token string,
	body []byte,
) *http.Request {
	t.Helper()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", serverEndpoint, path), bytes.NewBuffer(body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", serverEndpoint, path), nil)
	}
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-FITSYNC-TOKEN", token)
	return req
}

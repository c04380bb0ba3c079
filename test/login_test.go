package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestSignupAndLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signupResp := doSignup(ctx, t, "login-tester@fitsync.io", "testpass")
	require.NotEmpty(t, signupResp.UserID)

	t.Run("signup with taken email", func(t *testing.T) {
		credsJson, err := json.Marshal(credentialsRequest{
			Email:    "login-tester@fitsync.io",
			Password: "other-pass",
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+"/a/signup", bytes.NewBuffer(credsJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("good creds", func(t *testing.T) {
		loginResp := doLogin(ctx, t, "login-tester@fitsync.io", "testpass")
		assert.Equal(t, signupResp.UserID, loginResp.UserID)
		assert.NotEmpty(t, loginResp.Token)
	})

	t.Run("good creds, then logout", func(t *testing.T) {
		loginResp := doLogin(ctx, t, "login-tester@fitsync.io", "testpass")

		req, err := http.NewRequestWithContext(ctx, "GET", serverEndpoint+"/a/logout", nil)
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("X-FITSYNC-TOKEN", loginResp.Token)

		logoutResp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer logoutResp.Body.Close()
		assert.Equal(t, http.StatusOK, logoutResp.StatusCode)

		// the token is dead now
		listReq := storageRequest(ctx, t, "GET", "/storage/"+loginResp.UserID+"/records", loginResp.Token, nil)
		listResp, err := s.httpClient.Do(listReq)
		require.NoError(t, err)
		defer listResp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, listResp.StatusCode)
	})

	t.Run("bad password", func(t *testing.T) {
		credsJson, err := json.Marshal(credentialsRequest{
			Email:    "login-tester@fitsync.io",
			Password: "bad-password",
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+"/a/login", bytes.NewBuffer(credsJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "error, wrong credentials", strings.TrimSpace(string(respBytes)))
	})

	t.Run("unknown email", func(t *testing.T) {
		credsJson, err := json.Marshal(credentialsRequest{
			Email:    "who-dis@fitsync.io",
			Password: "testpass",
		})
		require.NoError(t, err)

		req, err := http.NewRequestWithContext(ctx, "POST", serverEndpoint+"/a/login", bytes.NewBuffer(credsJson))
		require.NoError(t, err)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

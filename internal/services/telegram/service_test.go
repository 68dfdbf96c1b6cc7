package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
	req    *http.Request
	body   []byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.req = req
	if req.Body != nil {
		m.body, _ = io.ReadAll(req.Body)
	}
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
	}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.TelegramConfig {
	return models.TelegramConfig{BotToken: "token123", ChatID: "42"}
}

func successRecord() models.RunRecord {
	return models.RunRecord{
		Class:       "daily",
		Destination: "/backup/daily/20240501",
		StartedAt:   time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC),
		Duration:    90 * time.Second,
		Success:     true,
		DBsDumped:   2,
	}
}

func TestSendRunSummary_Success(t *testing.T) {
	client := &mockHTTPClient{}
	svc := NewWithClient(testLogger(), client, "https://api.example.com")

	err := svc.SendRunSummary(context.Background(), testConfig(), successRecord())

	require.NoError(t, err)
	require.NotNil(t, client.req)
	assert.Equal(t, "https://api.example.com/bottoken123/sendMessage", client.req.URL.String())

	var body sendMessageRequest
	require.NoError(t, json.Unmarshal(client.body, &body))
	assert.Equal(t, "42", body.ChatID)
	assert.Contains(t, body.Text, "daily backup completed")
	assert.Contains(t, body.Text, "/backup/daily/20240501")
	assert.Contains(t, body.Text, "2 dumped")
}

func TestSendRunSummary_FailureMessage(t *testing.T) {
	client := &mockHTTPClient{}
	svc := NewWithClient(testLogger(), client, "https://api.example.com")

	rec := successRecord()
	rec.Success = false
	rec.FailedStep = "files"
	rec.Message = "rsync failed: exit status 12"

	err := svc.SendRunSummary(context.Background(), testConfig(), rec)

	require.NoError(t, err)
	var body sendMessageRequest
	require.NoError(t, json.Unmarshal(client.body, &body))
	assert.Contains(t, body.Text, "daily backup failed")
	assert.Contains(t, body.Text, "files")
	assert.Contains(t, body.Text, "exit status 12")
}

func TestSendRunSummary_HTTPError(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewWithClient(testLogger(), client, "https://api.example.com")

	err := svc.SendRunSummary(context.Background(), testConfig(), successRecord())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendRunSummary_NonOKStatus(t *testing.T) {
	client := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusForbidden,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		},
	}
	svc := NewWithClient(testLogger(), client, "https://api.example.com")

	err := svc.SendRunSummary(context.Background(), testConfig(), successRecord())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFormatRunSummary_EscapesHTML(t *testing.T) {
	rec := successRecord()
	rec.Success = false
	rec.FailedStep = "files"
	rec.Message = "unexpected <EOF> & more"

	text := formatRunSummary(rec)

	assert.Contains(t, text, "&lt;EOF&gt; &amp; more")
}

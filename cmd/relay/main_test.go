package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-relay/internal/config"
	"github.com/zhouzirui/research-relay/internal/gateway"
	"github.com/zhouzirui/research-relay/internal/handler"
	"github.com/zhouzirui/research-relay/internal/session"
)

func useEchoGateway(t *testing.T) {
	t.Helper()
	t.Setenv("RELAY_CONFIG_FILE", "")
	os.Unsetenv("RELAY_CONFIG_FILE")
	t.Setenv("GATEWAY_PROVIDER", "echo")
}

func TestAskCommand(t *testing.T) {
	useEchoGateway(t)

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"--log-level", "disabled", "ask", "what", "is", "raft?"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "what is raft?\n", out.String())
}

func TestAskCommandInvalidConfig(t *testing.T) {
	useEchoGateway(t)
	t.Setenv("GATEWAY_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "disabled", "ask", "q"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestChatAgainstRelay(t *testing.T) {
	manager := session.NewManager(session.WithConfigLoader(func() (config.GatewayConfig, error) {
		return config.GatewayConfig{Provider: config.ProviderEcho}, nil
	}))
	srv := httptest.NewServer(handler.NewRouter(manager, ""))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	opts := chatOptions{host: srv.URL, port: u.Port(), answerWait: 2 * time.Second}
	in := strings.NewReader("what is a monad?\n\n")

	require.NoError(t, runChat(context.Background(), in, &out, opts))

	assert.Contains(t, out.String(), "Assistant:\nwhat is a monad?")
	assert.NotContains(t, out.String(), "You:")
}

type slowGateway struct{ delay time.Duration }

func (g slowGateway) Invoke(ctx context.Context, query string) (string, error) {
	select {
	case <-time.After(g.delay):
		return query + " answered", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func startSlowRelay(t *testing.T, delay time.Duration) chatOptions {
	t.Helper()
	manager := session.NewManager(
		session.WithConfigLoader(func() (config.GatewayConfig, error) {
			return config.GatewayConfig{Provider: config.ProviderEcho}, nil
		}),
		session.WithFactory(gateway.FactoryFunc(func(ctx context.Context, cfg config.GatewayConfig) (gateway.Gateway, error) {
			return slowGateway{delay: delay}, nil
		})),
	)
	srv := httptest.NewServer(handler.NewRouter(manager, ""))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return chatOptions{host: srv.URL, port: u.Port(), answerWait: 2 * time.Second}
}

func TestChatAnswersEveryLineInOrder(t *testing.T) {
	opts := startSlowRelay(t, 150*time.Millisecond)

	var out bytes.Buffer
	in := strings.NewReader("what is a monad?\nexplain raft consensus\n")
	require.NoError(t, runChat(context.Background(), in, &out, opts))

	got := out.String()
	first := strings.Index(got, "Assistant:\nwhat is a monad? answered\n")
	second := strings.Index(got, "Assistant:\nexplain raft consensus answered\n")
	require.GreaterOrEqual(t, first, 0, got)
	require.Greater(t, second, first, got)
}

func TestChatShowsShortAnswers(t *testing.T) {
	manager := session.NewManager(session.WithConfigLoader(func() (config.GatewayConfig, error) {
		return config.GatewayConfig{Provider: config.ProviderEcho}, nil
	}))
	srv := httptest.NewServer(handler.NewRouter(manager, ""))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	var out bytes.Buffer
	opts := chatOptions{host: srv.URL, port: u.Port(), answerWait: 2 * time.Second}
	in := strings.NewReader("2+2?\nyes\n")

	start := time.Now()
	require.NoError(t, runChat(context.Background(), in, &out, opts))

	assert.Less(t, time.Since(start), 2*time.Second, "short answers should not wait for the timeout")
	got := out.String()
	first := strings.Index(got, "Assistant:\n2+2?\n")
	second := strings.Index(got, "Assistant:\nyes\n")
	require.GreaterOrEqual(t, first, 0, got)
	assert.Greater(t, second, first, got)
}

func TestChatOfflineDoesNotHang(t *testing.T) {
	srv := httptest.NewServer(nil)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	var out bytes.Buffer
	opts := chatOptions{host: "127.0.0.1", port: u.Port(), answerWait: time.Second}

	done := make(chan error, 1)
	go func() { done <- runChat(context.Background(), strings.NewReader("hello?\n"), &out, opts) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("offline chat did not return")
	}
	assert.Empty(t, out.String())
}

package ledgerbridge_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/pkg/ledgerbridge"
)

func testSettings(t *testing.T) ledgerbridge.Settings {
	t.Helper()
	s := ledgerbridge.DefaultSettings()
	secret, err := ledgerbridge.GenerateKey("ed25519")
	require.NoError(t, err)
	s.PrivateKey = secret
	s.Driver = "memory"
	return s
}

func TestOpenHandleAndShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := ledgerbridge.Open(context.Background(), testSettings(t), ledgerbridge.WithLogger(logger))
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		kinds []string
	)
	done := make(chan error, 1)
	go func() {
		done <- n.HandleNotifications(ledgerbridge.HandlerFunc(func(note ledgerbridge.Notification) {
			mu.Lock()
			kinds = append(kinds, note.Kind)
			mu.Unlock()
		}))
	}()

	gov, err := n.SubjectBuilder().WithNamespace("plant").WithName("gov").Build("", "governance")
	require.NoError(t, err)
	assert.NotEmpty(t, gov.SubjectID())

	require.NoError(t, n.ShutdownSignal().Shutdown())
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"new_subject", "new_event", "state_updated"}, kinds)
}

func TestOpenInvalidSettings(t *testing.T) {
	s := testSettings(t)
	s.TimeoutMS = 0

	_, err := ledgerbridge.Open(context.Background(), s)
	require.Error(t, err)
	assert.Equal(t, ledgerbridge.ErrorKind("InvalidSettings"), ledgerbridge.KindOf(err))
}

func TestStartWithCustomBackend(t *testing.T) {
	n, err := ledgerbridge.Start(ledgerbridge.NewMemoryBackend(), testSettings(t))
	require.NoError(t, err)

	subjects, err := n.API().GetSubjects("", "", 0)
	require.NoError(t, err)
	assert.Empty(t, subjects)
	assert.True(t, strings.HasPrefix(n.API().Controller(), "E"))

	require.NoError(t, n.ShutdownGracefully())
	_, err = n.ReceiveBlocking()
	assert.True(t, ledgerbridge.IsKind(err, "NoConnection"))
}

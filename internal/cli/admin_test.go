package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/node"
	"github.com/roach88/ledgerbridge/internal/settings"
	"github.com/roach88/ledgerbridge/internal/storage/memory"
)

func setupAdminRouter(t *testing.T) (*gin.Engine, *node.Node) {
	t.Helper()
	s := settings.Default()
	s.PrivateKey = testSecret
	s.Driver = settings.DriverMemory

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := node.Start(memory.New(), s, node.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.ShutdownGracefully() })

	return newAdminRouter(n.API(), n.Registry(), logger), n
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminHealth(t *testing.T) {
	r, n := setupAdminRouter(t)

	w := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, n.API().Controller(), body["controller"])
}

func TestAdminSubjectQueries(t *testing.T) {
	r, n := setupAdminRouter(t)
	gov, err := n.SubjectBuilder().WithNamespace("plant").WithName("gov").Build("", ledger.GovernanceSchemaID)
	require.NoError(t, err)

	w := get(t, r, "/v1/subjects/"+gov.SubjectID())
	require.Equal(t, http.StatusOK, w.Code)
	var data bridge.SubjectData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, "plant", data.Namespace)
	assert.True(t, data.Active)

	w = get(t, r, "/v1/governances?namespace=plant")
	require.Equal(t, http.StatusOK, w.Code)
	var govs []bridge.SubjectData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &govs))
	require.Len(t, govs, 1)
	assert.Equal(t, gov.SubjectID(), govs[0].SubjectID)

	w = get(t, r, "/v1/subjects?namespace=elsewhere")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = get(t, r, "/v1/subjects/"+gov.SubjectID()+"/events?from=-1")
	require.Equal(t, http.StatusOK, w.Code)
	var events []bridge.SignedEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, uint64(0), events[0].Event.SN)

	w = get(t, r, "/v1/subjects/"+gov.SubjectID()+"/events/0")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, r, "/v1/requests/"+gov.RequestID())
	require.Equal(t, http.StatusOK, w.Code)
	var req bridge.Request
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &req))
	assert.Equal(t, "finished", req.State)

	w = get(t, r, "/v1/subjects/"+gov.SubjectID()+"/verify")
	require.Equal(t, http.StatusOK, w.Code)
	var verify struct {
		Valid  bool               `json:"valid"`
		Report bridge.ChainReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verify))
	assert.True(t, verify.Valid)
	assert.Equal(t, uint64(1), verify.Report.Events)

	w = get(t, r, "/v1/approvals")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAdminErrorStatuses(t *testing.T) {
	r, _ := setupAdminRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
		kind   string
	}{
		{"malformed id", "/v1/subjects/xyz", http.StatusBadRequest, "MalformedIdentifier"},
		{"unknown subject", "/v1/subjects/Fhd8EDbXdcKNGD3vkJQYpTUGjA_OhCwpRFFSq3keAhHU", http.StatusNotFound, "NotFound"},
		{"bad sn", "/v1/subjects/Fhd8EDbXdcKNGD3vkJQYpTUGjA_OhCwpRFFSq3keAhHU/events/-1", http.StatusBadRequest, ""},
		{"bad quantity", "/v1/subjects?quantity=many", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, r, tt.path)
			assert.Equal(t, tt.status, w.Code)
			if tt.kind != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.kind, body["kind"])
			}
		})
	}
}

func TestAdminMetrics(t *testing.T) {
	r, n := setupAdminRouter(t)
	_, err := n.API().GetSubjects("", "", 0)
	require.NoError(t, err)

	w := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ledgerbridge_bridge_calls_total")
}

func TestAdminUnavailableAfterShutdown(t *testing.T) {
	r, n := setupAdminRouter(t)
	require.NoError(t, n.ShutdownGracefully())

	w := get(t, r, "/v1/subjects")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/id"
)

func TestVerifyChain_Intact(t *testing.T) {
	e := startTestEngine(t)
	govID := e.createGovernance()
	sensor := e.createSensor(govID, "plant.north", "t1")
	e.fact(e.keys, sensor, `{"temperature":19}`)
	e.fact(e.keys, sensor, `{"temperature":20}`)

	report, err := e.api.VerifyChain(e.ctx(), sensor)
	require.NoError(t, err)
	assert.Equal(t, sensor, report.SubjectID)
	assert.Equal(t, uint64(3), report.Events)

	subj, err := e.api.GetSubject(e.ctx(), sensor)
	require.NoError(t, err)
	assert.Equal(t, subj.LastEvent, report.Head)
}

func TestVerifyChain_DetectsTamperedPatch(t *testing.T) {
	e := startTestEngine(t)
	govID := e.createGovernance()
	sensor := e.createSensor(govID, "plant.north", "t1")
	e.fact(e.keys, sensor, `{"temperature":19}`)

	ev, err := e.api.GetEvent(e.ctx(), sensor, 1)
	require.NoError(t, err)
	ev.Content.Patch = []byte(`[{"op":"replace","path":"/temperature","value":99}]`)
	require.NoError(t, e.node.store.putEvent(e.ctx(), ev))

	_, err = e.api.VerifyChain(e.ctx(), sensor)
	require.Error(t, err)
	assert.Equal(t, CodeBrokenChain, CodeOf(err))
}

func TestVerifyChain_DetectsBrokenLink(t *testing.T) {
	e := startTestEngine(t)
	govID := e.createGovernance()
	sensor := e.createSensor(govID, "plant.north", "t1")
	e.fact(e.keys, sensor, `{"temperature":19}`)

	ev, err := e.api.GetEvent(e.ctx(), sensor, 1)
	require.NoError(t, err)
	ev.Content.HashPrevEvent = id.DigestID{}
	require.NoError(t, e.node.store.putEvent(e.ctx(), ev))

	_, err = e.api.VerifyChain(e.ctx(), sensor)
	require.Error(t, err)
	assert.Equal(t, CodeBrokenChain, CodeOf(err))
	assert.Contains(t, err.Error(), "predecessor")
}

func TestVerifyChain_UnknownSubject(t *testing.T) {
	e := startTestEngine(t)
	missing := mustDerive(t, "missing")

	_, err := e.api.VerifyChain(e.ctx(), missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

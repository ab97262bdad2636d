package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/salesswarm/core"
)

func noop(context.Context, string, core.Event) error { return nil }

func TestRegister_ReRegistrationReplacesSubscriptions(t *testing.T) {
	r := New()

	require.NoError(t, r.Register(core.WorkerCapability{
		WorkerID:   "A",
		Subscribes: []core.EventKind{core.KindEmailSent, core.KindEmailOpened},
	}))
	require.NoError(t, r.Register(core.WorkerCapability{
		WorkerID:   "A",
		Subscribes: []core.EventKind{core.KindEmailOpened},
	}))

	assert.NotContains(t, r.Subscribers(core.KindEmailSent), "A")
	assert.Equal(t, []string{"A"}, r.Subscribers(core.KindEmailOpened))

	c, ok := r.Capability("A")
	require.True(t, ok)
	assert.Equal(t, []core.EventKind{core.KindEmailOpened}, c.Subscribes)
	assert.Equal(t, []string{"A"}, r.WorkerIDs())
}

func TestRegister_Validation(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(core.WorkerCapability{WorkerID: " "}), ErrInvalidWorker)
	assert.ErrorIs(t, r.Register(core.WorkerCapability{
		WorkerID:   "w",
		Subscribes: []core.EventKind{"bogus"},
	}), ErrInvalidWorker)
	assert.ErrorIs(t, r.RegisterHandler("", noop), ErrInvalidWorker)
	assert.ErrorIs(t, r.RegisterHandler("w", nil), ErrInvalidWorker)
	assert.Empty(t, r.WorkerIDs())
}

func TestRegister_CapabilityIsCopied(t *testing.T) {
	r := New()
	subs := []core.EventKind{core.KindLeadEnriched}
	require.NoError(t, r.Register(core.WorkerCapability{WorkerID: "w", Subscribes: subs}))

	subs[0] = core.KindLeadQualified
	assert.Equal(t, []string{"w"}, r.Subscribers(core.KindLeadEnriched))

	c, _ := r.Capability("w")
	c.Subscribes[0] = core.KindCRMSynced
	again, _ := r.Capability("w")
	assert.Equal(t, core.KindLeadEnriched, again.Subscribes[0])
}

func TestDeliveries_ExcludesSourceAndUnboundWorkers(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b", "unbound"} {
		require.NoError(t, r.Register(core.WorkerCapability{
			WorkerID:   id,
			Subscribes: []core.EventKind{core.KindEmailGenerated},
		}))
		if id != "unbound" {
			require.NoError(t, r.RegisterHandler(id, noop))
		}
	}

	d := r.Deliveries(core.KindEmailGenerated, "b")
	ids := make([]string, 0, len(d))
	for _, x := range d {
		ids = append(ids, x.WorkerID)
		assert.NotNil(t, x.Handler)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.Equal(t, []string{"a", "b", "c", "unbound"}, r.Subscribers(core.KindEmailGenerated))
	assert.Empty(t, r.Deliveries(core.KindCRMSynced, ""))
}

func TestRegisterHandler_SurvivesReRegistration(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterHandler("w", noop))
	require.NoError(t, r.Register(core.WorkerCapability{WorkerID: "w", Subscribes: []core.EventKind{core.KindFollowupDue}}))
	require.NoError(t, r.Register(core.WorkerCapability{WorkerID: "w", Subscribes: []core.EventKind{core.KindFollowupSent}}))

	assert.Empty(t, r.Deliveries(core.KindFollowupDue, ""))
	assert.Len(t, r.Deliveries(core.KindFollowupSent, ""), 1)
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("w%02d", i)
			_ = r.Register(core.WorkerCapability{WorkerID: id, Subscribes: []core.EventKind{core.KindSessionStarted}})
			_ = r.RegisterHandler(id, noop)
			_ = r.Deliveries(core.KindSessionStarted, "")
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.WorkerIDs(), 50)
	assert.Len(t, r.Deliveries(core.KindSessionStarted, ""), 50)
	assert.Len(t, r.Capabilities(), 50)
}

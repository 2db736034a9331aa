package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platform/internal/apperr"
	"platform/internal/model"
)

// recordingSink collects audit entries so tests can wait for the gate's
// fire-and-forget goroutines.
type recordingSink struct {
	mu      sync.Mutex
	entries []*model.AuditLog
	done    chan struct{}
}

func newRecordingSink(expected int) *recordingSink {
	return &recordingSink{done: make(chan struct{}, expected)}
}

func (s *recordingSink) Record(ctx context.Context, entry *model.AuditLog) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func (s *recordingSink) wait(t *testing.T, n int) []*model.AuditLog {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for audit record %d of %d", i+1, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AuditLog, len(s.entries))
	copy(out, s.entries)
	return out
}

func TestAuthorizeWriteOwnership(t *testing.T) {
	home := uuid.New()
	p := managerPrincipal(home)
	gate := NewGate(nil)

	// In-scope row passes.
	filter, err := gate.AuthorizeWrite(context.Background(), p, KindCatalogItem, ActionUpdate, "item-1", &home)
	require.NoError(t, err)
	assert.Equal(t, LocationScope(home), filter)

	// Missing row and out-of-scope row produce indistinguishable denials.
	other := uuid.New()
	_, errMissing := gate.AuthorizeWrite(context.Background(), p, KindCatalogItem, ActionUpdate, "item-2", nil)
	_, errForeign := gate.AuthorizeWrite(context.Background(), p, KindCatalogItem, ActionUpdate, "item-3", &other)

	assert.ErrorIs(t, errMissing, apperr.ErrDenied)
	assert.ErrorIs(t, errForeign, apperr.ErrDenied)
}

func TestAuthorizeWriteAdminSkipsOwnership(t *testing.T) {
	gate := NewGate(nil)

	// Unrestricted scope carries no location pin, so the row check is the
	// caller's responsibility.
	filter, err := gate.AuthorizeWrite(context.Background(), adminPrincipal(), KindCatalogItem, ActionUpdate, "item-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ScopeNone, filter.Kind)
}

func TestAuthorizeCreatePinsLocation(t *testing.T) {
	home := uuid.New()
	p := managerPrincipal(home)
	gate := NewGate(nil)

	_, err := gate.AuthorizeCreate(context.Background(), p, KindCatalogItem, home)
	assert.NoError(t, err)

	_, err = gate.AuthorizeCreate(context.Background(), p, KindCatalogItem, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrDenied)

	// Admin creates anywhere.
	_, err = gate.AuthorizeCreate(context.Background(), adminPrincipal(), KindCatalogItem, uuid.New())
	assert.NoError(t, err)
}

func TestGateRecordsDecisions(t *testing.T) {
	home := uuid.New()
	p := memberPrincipal(home)
	sink := newRecordingSink(2)
	gate := NewGate(sink)

	_, err := gate.AuthorizeRead(context.Background(), p, KindCatalogItem, nil)
	require.NoError(t, err)
	_, err = gate.AuthorizeWrite(context.Background(), p, KindCatalogItem, ActionDelete, "item-1", &home)
	require.ErrorIs(t, err, apperr.ErrDenied)

	entries := sink.wait(t, 2)
	require.Len(t, entries, 2)

	byDecision := map[string]*model.AuditLog{}
	for _, e := range entries {
		byDecision[e.Decision] = e
	}

	allowed := byDecision[model.DecisionAllowed]
	require.NotNil(t, allowed)
	assert.Equal(t, string(ActionRead), allowed.Action)
	assert.Equal(t, string(KindCatalogItem), allowed.ResourceKind)
	assert.Empty(t, allowed.Reason)
	require.NotNil(t, allowed.UserID)
	assert.Equal(t, p.ID, *allowed.UserID)

	denied := byDecision[model.DecisionDenied]
	require.NotNil(t, denied)
	assert.Equal(t, string(ActionDelete), denied.Action)
	assert.Equal(t, "item-1", denied.ResourceID)
	assert.NotEmpty(t, denied.Reason)
}

// panicSink proves a broken audit backend cannot take a request down.
type panicSink struct{ done chan struct{} }

func (s *panicSink) Record(ctx context.Context, entry *model.AuditLog) {
	close(s.done)
	panic("audit backend down")
}

func TestGateSurvivesPanickingSink(t *testing.T) {
	sink := &panicSink{done: make(chan struct{})}
	gate := NewGate(sink)

	_, err := gate.AuthorizeRead(context.Background(), adminPrincipal(), KindMetrics, nil)
	assert.NoError(t, err)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit sink was never invoked")
	}
	// The recover in the gate's goroutine swallows the panic; reaching this
	// line without crashing the test binary is the assertion.
}

func TestGateNilSink(t *testing.T) {
	gate := NewGate(nil)
	_, err := gate.AuthorizeRead(context.Background(), adminPrincipal(), KindAudit, nil)
	assert.NoError(t, err)
}

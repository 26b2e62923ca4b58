package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodolfoDevApp/market-presto-sync-go/internal/domain"
)

type fakeStateRepo struct {
	states  map[string]*domain.StockState
	upserts int
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*domain.StockState)}
}

func (r *fakeStateRepo) GetAll(ctx context.Context) (map[string]*domain.StockState, error) {
	out := make(map[string]*domain.StockState, len(r.states))
	for k, v := range r.states {
		copied := *v
		out[k] = &copied
	}
	return out, nil
}

func (r *fakeStateRepo) Upsert(ctx context.Context, state *domain.StockState) error {
	copied := *state
	r.states[state.PosProductID] = &copied
	r.upserts++
	return nil
}

func row(id, name string, qty int) domain.StockRow {
	return domain.StockRow{PosProductID: id, ProductName: name, StockQuantity: qty}
}

func TestChangeDetector_UnmappedProductsAreInvisible(t *testing.T) {
	states := newFakeStateRepo()
	d := NewChangeDetector(states)

	snapshot := []domain.StockRow{row("A1", "Widget", 10), row("B2", "Gadget", 0)}
	mappings := map[string][]string{"A1": {"R1"}}

	transitions, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, "A1", transitions[0].PosProductID)
	// no state is recorded for unmapped products either
	_, ok := states.states["B2"]
	assert.False(t, ok)
}

func TestChangeDetector_FirstObservationEmitsTransition(t *testing.T) {
	states := newFakeStateRepo()
	d := NewChangeDetector(states)

	snapshot := []domain.StockRow{row("A1", "Widget", 10)}
	mappings := map[string][]string{"A1": {"R1"}}

	transitions, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	tr := transitions[0]
	assert.Equal(t, "A1", tr.PosProductID)
	assert.Equal(t, "Widget", tr.ProductName)
	assert.Equal(t, "R1", tr.VendorRef)
	assert.Equal(t, 10, tr.StockQuantity)
	assert.True(t, tr.IsAvailable)
	assert.Equal(t, domain.ActionEnable, tr.Action)

	st := states.states["A1"]
	require.NotNil(t, st)
	assert.True(t, st.IsAvailable)
	assert.Equal(t, 10, st.StockQuantity)
}

func TestChangeDetector_SecondDetectIsIdempotent(t *testing.T) {
	states := newFakeStateRepo()
	d := NewChangeDetector(states)

	snapshot := []domain.StockRow{row("A1", "Widget", 10)}
	mappings := map[string][]string{"A1": {"R1"}}

	first, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestChangeDetector_QuantityOnlyChangeIsNotATransition(t *testing.T) {
	states := newFakeStateRepo()
	states.states["A1"] = &domain.StockState{PosProductID: "A1", IsAvailable: true, StockQuantity: 3}
	d := NewChangeDetector(states)

	snapshot := []domain.StockRow{row("A1", "Widget", 99)}
	mappings := map[string][]string{"A1": {"R1"}}

	transitions, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)
	assert.Empty(t, transitions)

	// stored quantity is untouched until the availability flips
	assert.Equal(t, 3, states.states["A1"].StockQuantity)
}

func TestChangeDetector_MonotonicToggling(t *testing.T) {
	states := newFakeStateRepo()
	d := NewChangeDetector(states)
	mappings := map[string][]string{"A1": {"R1"}}

	quantities := []int{5, 5, 0, 0, 3}
	var total []domain.Transition
	perCycle := make([]int, 0, len(quantities))
	for _, qty := range quantities {
		transitions, err := d.Detect(context.Background(),
			[]domain.StockRow{row("A1", "Widget", qty)}, mappings)
		require.NoError(t, err)
		perCycle = append(perCycle, len(transitions))
		total = append(total, transitions...)
	}

	assert.Equal(t, []int{1, 0, 1, 0, 1}, perCycle)
	require.Len(t, total, 3)
	assert.Equal(t, domain.ActionEnable, total[0].Action)
	assert.Equal(t, domain.ActionDisable, total[1].Action)
	assert.Equal(t, domain.ActionEnable, total[2].Action)
	assert.Equal(t, 3, total[2].StockQuantity)
}

func TestChangeDetector_MultiMappingBroadcasts(t *testing.T) {
	states := newFakeStateRepo()
	d := NewChangeDetector(states)

	snapshot := []domain.StockRow{row("A1", "Widget", 7)}
	mappings := map[string][]string{"A1": {"R1", "R2", "R3"}}

	transitions, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)

	require.Len(t, transitions, 3)
	refs := []string{transitions[0].VendorRef, transitions[1].VendorRef, transitions[2].VendorRef}
	assert.Equal(t, []string{"R1", "R2", "R3"}, refs)
	for _, tr := range transitions {
		assert.Equal(t, "A1", tr.PosProductID)
		assert.Equal(t, 7, tr.StockQuantity)
		assert.Equal(t, domain.ActionEnable, tr.Action)
	}

	// the state commit happens once per product, not per mapping
	assert.Equal(t, 1, states.upserts)
}

func TestChangeDetector_SnapshotOrderIsPreserved(t *testing.T) {
	states := newFakeStateRepo()
	d := NewChangeDetector(states)

	snapshot := []domain.StockRow{
		row("C3", "Third", 1),
		row("A1", "First", 0),
		row("B2", "Second", 4),
	}
	mappings := map[string][]string{
		"A1": {"RA"},
		"B2": {"RB"},
		"C3": {"RC"},
	}

	transitions, err := d.Detect(context.Background(), snapshot, mappings)
	require.NoError(t, err)

	require.Len(t, transitions, 3)
	assert.Equal(t, "C3", transitions[0].PosProductID)
	assert.Equal(t, "A1", transitions[1].PosProductID)
	assert.Equal(t, "B2", transitions[2].PosProductID)
	assert.Equal(t, domain.ActionDisable, transitions[1].Action)
}

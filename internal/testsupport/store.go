package testsupport

import (
	"context"
	"testing"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/types"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewCompletedRun creates a run whose analysis finished with the given proposals.
func NewCompletedRun(t testing.TB, st *store.Store, id string, proposals ...types.Proposal) []types.Candidate {
	t.Helper()

	ctx := context.Background()
	if err := st.CreateRun(ctx, types.Run{ID: id, Source: "/videos/" + id + ".mp4"}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	candidates, err := st.CompleteAnalysis(ctx, id, proposals, "")
	if err != nil {
		t.Fatalf("CompleteAnalysis: %v", err)
	}
	return candidates
}

package factory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"agentfoundry/internal/store"
	"agentfoundry/internal/types"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, *types.AgentTemplate) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tpl := &types.AgentTemplate{Name: "Oraya Helper", CorePrompt: "You are Oraya's assistant."}
	require.NoError(t, s.CreateTemplate(tpl))
	return NewManager(s), s, tpl
}

func addMemory(t *testing.T, s *store.Store, templateID, content string) *types.FactoryMemory {
	t.Helper()
	m := &types.FactoryMemory{
		TemplateID: templateID,
		Category:   types.MemoryKnowledge,
		Content:    content,
		Importance: 0.8,
	}
	require.NoError(t, s.CreateMemory(m))
	return m
}

func TestFingerprintCoversDiffedFieldsOnly(t *testing.T) {
	base := types.FactoryMemory{Category: types.MemoryKnowledge, Content: "x", Importance: 0.5, Tags: []string{"a"}}

	changedContent := base
	changedContent.Content = "y"
	require.NotEqual(t, Fingerprint(base), Fingerprint(changedContent))

	changedCategory := base
	changedCategory.Category = types.MemorySkill
	require.NotEqual(t, Fingerprint(base), Fingerprint(changedCategory))

	changedImportance := base
	changedImportance.Importance = 0.9
	require.NotEqual(t, Fingerprint(base), Fingerprint(changedImportance))

	changedTags := base
	changedTags.Tags = []string{"a", "b"}
	require.NotEqual(t, Fingerprint(base), Fingerprint(changedTags))

	// Reordering or deactivating a memory is not a content change.
	changedSort := base
	changedSort.SortOrder = 99
	changedSort.IsActive = false
	require.Equal(t, Fingerprint(base), Fingerprint(changedSort))
}

func TestDiffPartitionsByFactoryID(t *testing.T) {
	kept := types.FactoryMemory{ID: "r1", FactoryID: "f-kept", Category: types.MemoryKnowledge, Content: "stable"}
	kept.PublishedHash = Fingerprint(kept)

	edited := types.FactoryMemory{ID: "r2", FactoryID: "f-edited", Category: types.MemoryKnowledge, Content: "original"}
	edited.PublishedHash = Fingerprint(edited)
	editedNow := edited
	editedNow.Content = "rewritten"

	gone := types.FactoryMemory{ID: "r3", FactoryID: "f-gone", Category: types.MemoryRule, Content: "dropped"}
	gone.PublishedHash = Fingerprint(gone)

	fresh := types.FactoryMemory{ID: "r4", FactoryID: "f-fresh", Category: types.MemorySkill, Content: "brand new"}

	old := []types.FactoryMemory{kept, edited, gone}
	current := []types.FactoryMemory{kept, editedNow, fresh}

	res := Diff(old, current)
	require.Len(t, res.Added, 1)
	require.Equal(t, "f-fresh", res.Added[0].FactoryID)
	require.Len(t, res.Modified, 1)
	require.Equal(t, "f-edited", res.Modified[0].FactoryID)
	require.Len(t, res.Removed, 1)
	require.Equal(t, "f-gone", res.Removed[0].FactoryID)
}

func TestDiffEmptyOldSetIsAllAdded(t *testing.T) {
	current := []types.FactoryMemory{
		{FactoryID: "a", Content: "one"},
		{FactoryID: "b", Content: "two"},
	}
	res := Diff(nil, current)
	require.Len(t, res.Added, 2)
	require.Empty(t, res.Modified)
	require.Empty(t, res.Removed)
}

func TestPublishEmptySetRefused(t *testing.T) {
	mgr, _, tpl := newTestManager(t)

	_, err := mgr.Publish(context.Background(), tpl.ID)
	require.True(t, types.IsKind(err, types.KindEmptyPublish))

	// Refusal leaves the counter untouched.
	got, err := mgr.store.GetTemplate(tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.FactoryVersion)
}

func TestPublishUnknownTemplate(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.Publish(context.Background(), "missing")
	require.True(t, types.IsKind(err, types.KindNotFound))
}

func TestPublishFirstVersion(t *testing.T) {
	mgr, s, tpl := newTestManager(t)
	m := addMemory(t, s, tpl.ID, "Oraya uses TypeScript")

	sum, err := mgr.Publish(context.Background(), tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 0, sum.FromVersion)
	require.Equal(t, 1, sum.ToVersion)
	require.Equal(t, 1, sum.TotalActiveMemories)

	want := []types.MemoryRef{{FactoryID: m.FactoryID, Category: types.MemoryKnowledge, Content: "Oraya uses TypeScript"}}
	if diff := cmp.Diff(want, sum.Added); diff != "" {
		t.Fatalf("added set mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, sum.Modified)
	require.Empty(t, sum.Removed)

	got, err := s.GetMemory(m.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.VersionAdded)
	require.Zero(t, got.VersionRemoved)

	tplNow, err := s.GetTemplate(tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tplNow.FactoryVersion)
	require.NotNil(t, tplNow.FactoryPublishedAt)
}

func TestPublishLifecycle(t *testing.T) {
	mgr, s, tpl := newTestManager(t)
	ctx := context.Background()

	seed := addMemory(t, s, tpl.ID, "Oraya uses TypeScript")
	_, err := mgr.Publish(ctx, tpl.ID)
	require.NoError(t, err)

	// v2: edit in place. Same factory id, so this is a modification, not an
	// add/remove pair.
	content := "Oraya uses TypeScript and Go"
	_, err = s.UpdateMemory(seed.ID, types.MemoryPatch{Content: &content})
	require.NoError(t, err)

	sum, err := mgr.Publish(ctx, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 2, sum.ToVersion)
	require.Empty(t, sum.Added)
	require.Len(t, sum.Modified, 1)
	require.Equal(t, seed.FactoryID, sum.Modified[0].FactoryID)
	require.Empty(t, sum.Removed)

	// v3: retire the seed, add a replacement.
	require.NoError(t, s.SoftDeleteMemory(seed.ID))
	repl := addMemory(t, s, tpl.ID, "Oraya ships weekly")

	sum, err = mgr.Publish(ctx, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 3, sum.ToVersion)
	require.Len(t, sum.Added, 1)
	require.Equal(t, repl.FactoryID, sum.Added[0].FactoryID)
	require.Len(t, sum.Removed, 1)
	require.Equal(t, seed.FactoryID, sum.Removed[0].FactoryID)
	require.Equal(t, 1, sum.TotalActiveMemories)

	retired, err := s.GetMemory(seed.ID)
	require.NoError(t, err)
	require.Equal(t, 3, retired.VersionRemoved, "removal stamps the version it left at")

	history, err := mgr.Versions(tpl.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, rec := range history {
		require.Equal(t, i+1, rec.Version, "history must be contiguous")
	}
	require.Equal(t, 1, history[1].Modified)
	require.Equal(t, 1, history[2].Removed)
}

func TestPublishNoChangesStillBumps(t *testing.T) {
	// Republishing an unchanged set produces an empty diff but a new version;
	// the counter only moves forward.
	mgr, s, tpl := newTestManager(t)
	ctx := context.Background()
	addMemory(t, s, tpl.ID, "stable fact")

	first, err := mgr.Publish(ctx, tpl.ID)
	require.NoError(t, err)
	second, err := mgr.Publish(ctx, tpl.ID)
	require.NoError(t, err)

	require.Equal(t, first.ToVersion+1, second.ToVersion)
	require.Empty(t, second.Added)
	require.Empty(t, second.Modified)
	require.Empty(t, second.Removed)
}

func TestPublishAllRemovedBecomesEmptyPublish(t *testing.T) {
	mgr, s, tpl := newTestManager(t)
	ctx := context.Background()

	m := addMemory(t, s, tpl.ID, "only memory")
	_, err := mgr.Publish(ctx, tpl.ID)
	require.NoError(t, err)

	require.NoError(t, s.SoftDeleteMemory(m.ID))
	_, err = mgr.Publish(ctx, tpl.ID)
	require.True(t, types.IsKind(err, types.KindEmptyPublish))

	// The previous publish stays intact.
	got, err := s.GetTemplate(tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.FactoryVersion)
}

func TestConcurrentPublishSerializes(t *testing.T) {
	mgr, s, tpl := newTestManager(t)
	addMemory(t, s, tpl.ID, "contended fact")

	const publishers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Publish(context.Background(), tpl.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case types.IsKind(err, types.KindPublishConflict):
				conflicts++
			default:
				t.Errorf("unexpected publish error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, publishers, successes+conflicts)
	require.Greater(t, successes, 0)

	// Version counter equals the number of wins; losers changed nothing.
	got, err := s.GetTemplate(tpl.ID)
	require.NoError(t, err)
	require.Equal(t, successes, got.FactoryVersion)

	history, err := mgr.Versions(tpl.ID)
	require.NoError(t, err)
	require.Len(t, history, successes)
	for i, rec := range history {
		require.Equal(t, i+1, rec.Version)
	}
}

func TestPublishConflictRetrySucceeds(t *testing.T) {
	mgr, s, tpl := newTestManager(t)
	ctx := context.Background()
	addMemory(t, s, tpl.ID, "retry fact")

	// A conflicted caller retries against fresh state and wins.
	for i := 0; i < 3; i++ {
		var err error
		for attempt := 0; attempt < 5; attempt++ {
			_, err = mgr.Publish(ctx, tpl.ID)
			if !types.IsKind(err, types.KindPublishConflict) {
				break
			}
		}
		require.NoError(t, err)
	}

	got, err := s.GetTemplate(tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.FactoryVersion)
}

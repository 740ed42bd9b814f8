// Package factory owns the versioned distribution of factory memories: the
// diff between the editable memory set and the last published snapshot, and
// the atomic publish transition that advances a template's factory version.
package factory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"agentfoundry/internal/logging"
	"agentfoundry/internal/store"
	"agentfoundry/internal/types"
)

// Manager performs publish transitions against the store.
type Manager struct {
	store *store.Store
	log   *zap.Logger
}

// NewManager creates a version manager over the given store.
func NewManager(s *store.Store) *Manager {
	return &Manager{
		store: s,
		log:   logging.Get(logging.CategoryFactory),
	}
}

// Fingerprint hashes the fields the publish diff compares: content, category,
// importance and tags. Sort order, activity flags and timestamps are
// deliberately outside the fingerprint; changing them alone is not a
// "modified" memory.
func Fingerprint(m types.FactoryMemory) string {
	h := sha256.New()
	h.Write([]byte(m.Content))
	h.Write([]byte{0})
	h.Write([]byte(m.Category))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(m.Importance, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(m.Tags, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// DiffResult partitions a publish candidate set against the last published
// snapshot, keyed by stable factory id.
type DiffResult struct {
	Added    []types.FactoryMemory
	Modified []types.FactoryMemory
	Removed  []types.FactoryMemory
}

// Diff compares the last published set (old) with the currently-active set
// (new). A memory present in both counts as modified when its current
// fingerprint no longer matches the fingerprint recorded at its last publish.
func Diff(old, new []types.FactoryMemory) DiffResult {
	oldByFactory := make(map[string]types.FactoryMemory, len(old))
	for _, m := range old {
		oldByFactory[m.FactoryID] = m
	}
	newFactoryIDs := make(map[string]struct{}, len(new))

	var res DiffResult
	for _, m := range new {
		newFactoryIDs[m.FactoryID] = struct{}{}
		prev, ok := oldByFactory[m.FactoryID]
		if !ok {
			res.Added = append(res.Added, m)
			continue
		}
		if Fingerprint(m) != prev.PublishedHash {
			res.Modified = append(res.Modified, m)
		}
	}
	for _, m := range old {
		if _, ok := newFactoryIDs[m.FactoryID]; !ok {
			res.Removed = append(res.Removed, m)
		}
	}
	return res
}

// Publish atomically advances the template's factory version.
//
// The whole transition runs in one transaction: snapshot the active set,
// derive the last published set, diff, compare-and-swap the version counter,
// stamp version intervals and fingerprints, and append the audit row. Any
// failure rolls everything back, so a half-published version can never be
// observed. A lost version race surfaces as PublishConflict; the caller can
// safely retry against the fresh state.
func (m *Manager) Publish(ctx context.Context, templateID string) (*types.PublishSummary, error) {
	tpl, err := m.store.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	fromVersion := tpl.FactoryVersion
	toVersion := fromVersion + 1

	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sNew, err := m.store.ActiveMemoriesTx(tx, templateID)
	if err != nil {
		return nil, err
	}
	if len(sNew) == 0 {
		return nil, types.EmptyPublish(templateID)
	}
	sOld, err := m.store.MemoriesAtVersionTx(tx, templateID, fromVersion)
	if err != nil {
		return nil, err
	}

	diff := Diff(sOld, sNew)

	at := time.Now().UTC()
	swapped, err := m.store.CASBumpFactoryVersionTx(tx, templateID, fromVersion, toVersion, at)
	if err != nil {
		return nil, err
	}
	if !swapped {
		m.log.Warn("publish lost version race",
			zap.String("template_id", templateID),
			zap.Int("expected_version", fromVersion))
		return nil, types.PublishConflict(templateID, fromVersion)
	}

	for _, mem := range diff.Added {
		if err := m.store.StampMemoryAddedTx(tx, mem.ID, toVersion); err != nil {
			return nil, err
		}
	}
	for _, mem := range diff.Removed {
		if err := m.store.StampMemoryRemovedTx(tx, mem.ID, toVersion); err != nil {
			return nil, err
		}
	}
	for _, mem := range sNew {
		if err := m.store.SetPublishedHashTx(tx, mem.ID, Fingerprint(mem)); err != nil {
			return nil, err
		}
	}

	if err := m.store.InsertVersionRecordTx(tx, types.VersionRecord{
		TemplateID:  templateID,
		Version:     toVersion,
		Added:       len(diff.Added),
		Modified:    len(diff.Modified),
		Removed:     len(diff.Removed),
		TotalActive: len(sNew),
		PublishedAt: at,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	m.log.Info("published factory version",
		zap.String("template_id", templateID),
		zap.Int("from_version", fromVersion),
		zap.Int("to_version", toVersion),
		zap.Int("added", len(diff.Added)),
		zap.Int("modified", len(diff.Modified)),
		zap.Int("removed", len(diff.Removed)),
		zap.Int("total_active", len(sNew)))

	return &types.PublishSummary{
		TemplateID:          templateID,
		FromVersion:         fromVersion,
		ToVersion:           toVersion,
		Added:               refs(diff.Added),
		Modified:            refs(diff.Modified),
		Removed:             refs(diff.Removed),
		TotalActiveMemories: len(sNew),
		PublishedAt:         at,
	}, nil
}

// Versions returns the publish audit history for a template, oldest first.
func (m *Manager) Versions(templateID string) ([]types.VersionRecord, error) {
	if _, err := m.store.GetTemplate(templateID); err != nil {
		return nil, err
	}
	return m.store.ListVersions(templateID)
}

func refs(memories []types.FactoryMemory) []types.MemoryRef {
	out := make([]types.MemoryRef, 0, len(memories))
	for _, m := range memories {
		out = append(out, types.MemoryRef{
			FactoryID: m.FactoryID,
			Category:  m.Category,
			Content:   m.Content,
		})
	}
	return out
}

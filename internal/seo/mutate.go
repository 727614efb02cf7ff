package seo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// PlacedLink is one inserted link to fold into the projection.
type PlacedLink struct {
	SourceID int
	TargetID int
	Anchor   string

	// Type is the anchor classification; computed when empty.
	Type string
}

// TrackAnchorUsage folds one placed link into the cache and, when persist
// is set, writes the link records through to the catalog. PageRank and
// the orphan list intentionally stay stale until the next TTL refresh.
func (c *Cache) TrackAnchorUsage(ctx context.Context, link PlacedLink, persist bool) error {
	c.applyPlacedLinks([]PlacedLink{link})

	if !persist {
		return nil
	}
	err := c.store.AppendLinkRecords(ctx, []catalog.LinkRecord{{
		SourceID:   link.SourceID,
		TargetID:   link.TargetID,
		Anchor:     link.Anchor,
		AnchorType: link.Type,
	}})
	if err != nil {
		return fmt.Errorf("persisting anchor usage: %w", err)
	}
	return nil
}

// BatchIncrementalUpdate folds placed links into the cache without
// persistence; auto-insert fires persistence concurrently.
func (c *Cache) BatchIncrementalUpdate(links []PlacedLink) {
	c.applyPlacedLinks(links)
}

func (c *Cache) applyPlacedLinks(links []PlacedLink) {
	if len(links) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap == nil {
		c.snap = buildSnapshot(nil, c.brand)
	}
	snap := c.snap
	now := time.Now().UTC()

	for _, l := range links {
		anchorType := l.Type
		if anchorType == "" {
			anchorType = ClassifyAnchor(l.Anchor, snap.articles[l.TargetID], c.brand)
		}

		key := strings.ToLower(strings.TrimSpace(l.Anchor))
		if key == "" {
			continue
		}

		usage, ok := snap.anchors[key]
		if !ok {
			usage = &AnchorUsage{Type: anchorType, CreatedAt: now}
			snap.anchors[key] = usage
		}
		usage.Count++
		if !contains(usage.TargetIDs, l.TargetID) {
			usage.TargetIDs = append(usage.TargetIDs, l.TargetID)
		}
		if !contains(usage.SourceIDs, l.SourceID) {
			usage.SourceIDs = append(usage.SourceIDs, l.SourceID)
		}
		snap.typeCounts[anchorType]++
		snap.totalAnchors++

		if !contains(snap.graph[l.SourceID], l.TargetID) {
			snap.graph[l.SourceID] = append(snap.graph[l.SourceID], l.TargetID)
		}
		if contains(snap.graph[l.TargetID], l.SourceID) {
			snap.reciprocal[sortedPair(l.SourceID, l.TargetID)] = struct{}{}
		}

		if _, seen := snap.firstLinks[l.TargetID]; !seen {
			snap.firstLinks[l.TargetID] = FirstLink{
				Anchor:    strings.TrimSpace(l.Anchor),
				SourceID:  l.SourceID,
				CreatedAt: now,
			}
		}
	}
}

// Dismiss suppresses a target for a source. With persist, the source
// article's dismissed-link metadata is updated in the catalog.
func (c *Cache) Dismiss(ctx context.Context, sourceID, targetID int, reason string, persist bool) error {
	c.mu.Lock()
	if c.dismissed[sourceID] == nil {
		c.dismissed[sourceID] = make(map[int]catalog.DismissedLink)
	}
	c.dismissed[sourceID][targetID] = catalog.DismissedLink{
		TargetID:    targetID,
		DismissedAt: time.Now().UTC(),
		Reason:      reason,
	}
	c.mu.Unlock()

	return c.persistDismissed(ctx, sourceID, persist)
}

// Restore removes one dismissal, making the target eligible again.
func (c *Cache) Restore(ctx context.Context, sourceID, targetID int, persist bool) error {
	c.mu.Lock()
	delete(c.dismissed[sourceID], targetID)
	c.mu.Unlock()

	return c.persistDismissed(ctx, sourceID, persist)
}

// ClearDismissed drops every dismissal for a source.
func (c *Cache) ClearDismissed(ctx context.Context, sourceID int, persist bool) error {
	c.mu.Lock()
	delete(c.dismissed, sourceID)
	c.mu.Unlock()

	return c.persistDismissed(ctx, sourceID, persist)
}

// Dismissed returns the dismissals for a source, oldest first.
func (c *Cache) Dismissed(sourceID int) []catalog.DismissedLink {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.DismissedLink, 0, len(c.dismissed[sourceID]))
	for _, dl := range c.dismissed[sourceID] {
		out = append(out, dl)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DismissedAt.Equal(out[j].DismissedAt) {
			return out[i].DismissedAt.Before(out[j].DismissedAt)
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// IsDismissed reports whether a target is suppressed for a source.
func (c *Cache) IsDismissed(sourceID, targetID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.dismissed[sourceID][targetID]
	return ok
}

func (c *Cache) persistDismissed(ctx context.Context, sourceID int, persist bool) error {
	if !persist {
		return nil
	}
	err := c.store.UpdateDismissed(ctx, sourceID, c.Dismissed(sourceID))
	if err != nil {
		c.logger.Warn("persisting dismissed links failed",
			zap.Int("source_id", sourceID), zap.Error(err))
		return fmt.Errorf("persisting dismissed links for %d: %w", sourceID, err)
	}
	return nil
}

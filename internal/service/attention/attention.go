// internal/service/attention/attention.go
package attention

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"prospect-service/internal/domain/prospect"
	"prospect-service/internal/domain/realtime"
	"prospect-service/internal/domain/staff"
	"prospect-service/internal/service/permissions"

	"go.uber.org/zap"
)

// processedCap bounds the per-viewer dedup set.
const processedCap = 4096

// AccessChecker re-derives whether a viewer may see a prospect row.
type AccessChecker interface {
	CanAccessProspectRow(ctx context.Context, user *staff.User, p *prospect.Prospect) permissions.AccessDecision
}

// MessageReader supplies the ordering key: the prospect's last inbound
// message timestamp.
type MessageReader interface {
	LastInboundAt(ctx context.Context, prospectID int64) (*time.Time, error)
}

// ProspectLister supplies flagged prospects for viewer snapshots.
type ProspectLister interface {
	ListRequiringAttention(ctx context.Context) ([]prospect.Prospect, error)
}

// UserSource resolves registering viewers.
type UserSource interface {
	FindByID(ctx context.Context, id int64) (*staff.User, error)
}

// CoverageChecker labels prospects the viewer covers as a backup.
type CoverageChecker interface {
	CoveredBy(ctx context.Context, viewerStaffID, prospectExecutiveID int64) (*staff.Coverage, error)
}

// Notifier pushes list changes to a viewer's connected clients.
type Notifier interface {
	AttentionChanged(userID int64, event *realtime.AttentionEvent)
}

type viewerState struct {
	user      *staff.User
	entries   []realtime.AttentionEntry
	processed map[string]struct{}
}

// Service keeps each registered viewer's "needs attention" list
// consistent with the prospect change feed, patching incrementally
// instead of reloading. Full reload on every change would make every
// agent's screen re-query on every unrelated edit.
type Service struct {
	mu      sync.Mutex
	viewers map[int64]*viewerState

	access    AccessChecker
	messages  MessageReader
	prospects ProspectLister
	users     UserSource
	coverage  CoverageChecker
	notifier  Notifier
	logger    *zap.Logger
}

func NewService(access AccessChecker, messages MessageReader, prospects ProspectLister, users UserSource, coverage CoverageChecker, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		viewers:   make(map[int64]*viewerState),
		access:    access,
		messages:  messages,
		prospects: prospects,
		users:     users,
		coverage:  coverage,
		notifier:  notifier,
		logger:    logger,
	}
}

// RegisterViewer builds the viewer's initial list from the flagged
// prospects passing their scope and starts tracking changes for them.
func (s *Service) RegisterViewer(ctx context.Context, userID int64) ([]realtime.AttentionEntry, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("viewer %d: %w", userID, err)
	}

	entries, err := s.buildList(ctx, user)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.viewers[userID] = &viewerState{
		user:      user,
		entries:   entries,
		processed: make(map[string]struct{}),
	}
	s.mu.Unlock()

	s.logger.Info("attention viewer registered",
		zap.Int64("user_id", userID), zap.Int("entries", len(entries)))

	return entries, nil
}

// UnregisterViewer stops tracking a viewer.
func (s *Service) UnregisterViewer(userID int64) {
	s.mu.Lock()
	delete(s.viewers, userID)
	s.mu.Unlock()
}

// ListFor returns the viewer's tracked list, computing an ephemeral
// one for users without a live registration.
func (s *Service) ListFor(ctx context.Context, userID int64) ([]realtime.AttentionEntry, error) {
	s.mu.Lock()
	_, registered := s.viewers[userID]
	s.mu.Unlock()

	if registered {
		return s.Snapshot(userID), nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("viewer %d: %w", userID, err)
	}
	return s.buildList(ctx, user)
}

// buildList assembles the scoped ordered list for a user.
func (s *Service) buildList(ctx context.Context, user *staff.User) ([]realtime.AttentionEntry, error) {
	flagged, err := s.prospects.ListRequiringAttention(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load flagged prospects: %w", err)
	}

	entries := []realtime.AttentionEntry{}
	for i := range flagged {
		p := &flagged[i]
		if d := s.access.CanAccessProspectRow(ctx, user, p); !d.CanAccess {
			continue
		}
		entries = append(entries, s.buildEntry(ctx, user, p))
	}
	sortEntries(entries)
	return entries, nil
}

// Snapshot returns the viewer's current ordered list.
func (s *Service) Snapshot(userID int64) []realtime.AttentionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[userID]
	if !ok {
		return nil
	}
	out := make([]realtime.AttentionEntry, len(v.entries))
	copy(out, v.entries)
	return out
}

// HandleChange patches every registered viewer's list for one change
// feed event. Access checks here may lag the triggering change by one
// round-trip; a later event self-corrects membership.
func (s *Service) HandleChange(ctx context.Context, ev *prospect.ChangeEvent) {
	if ev.New == nil {
		return
	}

	s.mu.Lock()
	viewerIDs := make([]int64, 0, len(s.viewers))
	for id := range s.viewers {
		viewerIDs = append(viewerIDs, id)
	}
	s.mu.Unlock()

	for _, id := range viewerIDs {
		s.applyToViewer(ctx, id, ev)
	}
}

func (s *Service) applyToViewer(ctx context.Context, userID int64, ev *prospect.ChangeEvent) {
	s.mu.Lock()
	v, ok := s.viewers[userID]
	if !ok {
		s.mu.Unlock()
		return
	}

	key := changeKey(ev)
	if _, seen := v.processed[key]; seen {
		s.mu.Unlock()
		return
	}
	if len(v.processed) >= processedCap {
		v.processed = make(map[string]struct{})
	}
	v.processed[key] = struct{}{}

	user := v.user
	// The feed may omit the old row version. Current list membership
	// stands in for "was this already displayed" in that case, and is
	// equally authoritative when old is present.
	displayed := containsEntry(v.entries, ev.New.ID)
	s.mu.Unlock()

	shouldDisplay := false
	if ev.New.RequiresAttention {
		d := s.access.CanAccessProspectRow(ctx, user, ev.New)
		shouldDisplay = d.CanAccess
	}

	switch {
	case shouldDisplay && !displayed:
		entry := s.buildEntry(ctx, user, ev.New)
		s.mutateViewer(userID, func(v *viewerState) {
			v.entries = append(v.entries, entry)
			sortEntries(v.entries)
		})
		s.notify(userID, &realtime.AttentionEvent{
			Type:  realtime.EventTypeAttentionAdded,
			Entry: &entry,
			List:  s.Snapshot(userID),
		})

	case !shouldDisplay && displayed:
		var removed realtime.AttentionEntry
		s.mutateViewer(userID, func(v *viewerState) {
			for i := range v.entries {
				if v.entries[i].ProspectID == ev.New.ID {
					removed = v.entries[i]
					v.entries = append(v.entries[:i], v.entries[i+1:]...)
					break
				}
			}
		})
		s.notify(userID, &realtime.AttentionEvent{
			Type:  realtime.EventTypeAttentionRemoved,
			Entry: &removed,
			List:  s.Snapshot(userID),
		})

	case shouldDisplay && displayed:
		// Ownership or activity may have moved; refresh the entry and
		// re-sort.
		entry := s.buildEntry(ctx, user, ev.New)
		changed := false
		s.mutateViewer(userID, func(v *viewerState) {
			for i := range v.entries {
				if v.entries[i].ProspectID == ev.New.ID {
					if !entryEqual(v.entries[i], entry) {
						v.entries[i] = entry
						changed = true
					}
					break
				}
			}
			if changed {
				sortEntries(v.entries)
			}
		})
		if changed {
			s.notify(userID, &realtime.AttentionEvent{
				Type:  realtime.EventTypeAttentionResorted,
				Entry: &entry,
				List:  s.Snapshot(userID),
			})
		}
	}
}

func (s *Service) mutateViewer(userID int64, fn func(*viewerState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.viewers[userID]; ok {
		fn(v)
	}
}

func (s *Service) notify(userID int64, event *realtime.AttentionEvent) {
	if s.notifier != nil {
		s.notifier.AttentionChanged(userID, event)
	}
}

func (s *Service) buildEntry(ctx context.Context, user *staff.User, p *prospect.Prospect) realtime.AttentionEntry {
	entry := realtime.AttentionEntry{
		ProspectID:  p.ID,
		DisplayName: p.DisplayName(),
		Phone:       p.Phone,
		ExecutiveID: p.ExecutiveID,
		UnitID:      p.CoordinationUnitID,
	}

	if s.coverage != nil && user.Role == staff.RoleExecutive &&
		user.StaffID != nil && p.ExecutiveID != nil && *p.ExecutiveID != *user.StaffID {
		cov, err := s.coverage.CoveredBy(ctx, *user.StaffID, *p.ExecutiveID)
		if err == nil && cov.IsBackup {
			entry.CoveredBackup = true
		}
	}

	last, err := s.messages.LastInboundAt(ctx, p.ID)
	if err != nil {
		// Ordering degrades for this entry; membership is unaffected.
		s.logger.Warn("failed to read last message timestamp",
			zap.Int64("prospect_id", p.ID), zap.Error(err))
		return entry
	}
	entry.LastMessageAt = last
	return entry
}

// changeKey dedups one underlying row change across repeated feed
// deliveries. The key carries the fields that drive membership, not
// just the timestamp: updated_at alone cannot separate two changes
// committed in the same instant.
func changeKey(ev *prospect.ChangeEvent) string {
	return fmt.Sprintf("%d:%s:%d:%t:%s:%s",
		ev.New.ID, ev.Op, ev.New.UpdatedAt.UnixNano(),
		ev.New.RequiresAttention,
		i64Label(ev.New.ExecutiveID), i64Label(ev.New.CoordinationUnitID))
}

func i64Label(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

// entryEqual compares entries by value. Pointer fields hold fresh
// allocations on every rebuild, so identity comparison would report a
// change on every event.
func entryEqual(a, b realtime.AttentionEntry) bool {
	return a.ProspectID == b.ProspectID &&
		a.DisplayName == b.DisplayName &&
		a.Phone == b.Phone &&
		a.CoveredBackup == b.CoveredBackup &&
		i64PtrEqual(a.ExecutiveID, b.ExecutiveID) &&
		i64PtrEqual(a.UnitID, b.UnitID) &&
		timePtrEqual(a.LastMessageAt, b.LastMessageAt)
}

func i64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func containsEntry(entries []realtime.AttentionEntry, prospectID int64) bool {
	for i := range entries {
		if entries[i].ProspectID == prospectID {
			return true
		}
	}
	return false
}

// sortEntries orders descending by last inbound message time; entries
// without activity sink to the bottom.
func sortEntries(entries []realtime.AttentionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].LastMessageAt, entries[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

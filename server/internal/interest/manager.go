package interest

import (
	"context"
	"sort"

	"skirmish/server/internal/geom"
	"skirmish/server/logging"
	ilog "skirmish/server/logging/interest"
)

// EntityPositioner is the read-only view the Manager needs of the world to
// score candidates for a selection: each candidate's current position.
type EntityPositioner interface {
	PositionOf(id uint32) (geom.Vec2, bool)
}

// Manager holds the chunk index plus per-peer hysteresis state and
// performs budgeted visible-set selection.
type Manager struct {
	Index *Index

	radius       int
	maxEntities  int
	hysteresis   float64
	previousSets map[string]map[uint32]struct{}
	pub          logging.Publisher
}

// NewManager returns a Manager over index with the given selection budget.
func NewManager(index *Index, radius, maxEntities int, hysteresisBonus float64, pub logging.Publisher) *Manager {
	return &Manager{
		Index:        index,
		radius:       radius,
		maxEntities:  maxEntities,
		hysteresis:   hysteresisBonus,
		previousSets: make(map[string]map[uint32]struct{}),
		pub:          pub,
	}
}

type scored struct {
	id    uint32
	score float64
}

// SelectVisible computes peerID's visible entity set per spec.md §4.3: the
// player entity is always first; the candidate pool is every entity within
// the (2*radius+1)^2 chunk square around centerPos; if the pool exceeds the
// budget, entities are scored by distance-squared minus a hysteresis bonus
// for ids that were visible last time, and the lowest-scoring MAX-1 (plus
// the player) survive. Ties break by ascending id.
func (m *Manager) SelectVisible(ctx context.Context, tick uint64, peerID string, playerEntityID uint32, centerPos geom.Vec2, world EntityPositioner) []uint32 {
	center := WorldToChunk(centerPos, m.Index.chunkSize)
	candidates := m.Index.Square(center, m.radius)

	others := make([]uint32, 0, len(candidates))
	for _, id := range candidates {
		if id == playerEntityID {
			continue
		}
		others = append(others, id)
	}

	prevSet := m.previousSets[peerID]

	// The player is always included first, regardless of chunk membership.
	selected := []uint32{playerEntityID}

	budgetForOthers := m.maxEntities - 1
	if budgetForOthers < 0 {
		budgetForOthers = 0
	}

	if len(others) <= budgetForOthers {
		sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
		selected = append(selected, others...)
	} else {
		scoredOthers := make([]scored, 0, len(others))
		for _, id := range others {
			pos, ok := world.PositionOf(id)
			if !ok {
				continue
			}
			score := centerPos.DistanceSquared(pos)
			if _, wasVisible := prevSet[id]; wasVisible {
				score -= m.hysteresis
			}
			scoredOthers = append(scoredOthers, scored{id: id, score: score})
		}
		sort.Slice(scoredOthers, func(i, j int) bool {
			if scoredOthers[i].score != scoredOthers[j].score {
				return scoredOthers[i].score < scoredOthers[j].score
			}
			return scoredOthers[i].id < scoredOthers[j].id
		})
		if len(scoredOthers) > budgetForOthers {
			ilog.BudgetExceeded(ctx, m.pub, tick, ilog.BudgetExceededPayload{
				PeerID:     peerID,
				Candidates: len(others) + 1,
				Kept:       budgetForOthers + 1,
			})
			scoredOthers = scoredOthers[:budgetForOthers]
		}
		kept := make([]uint32, len(scoredOthers))
		for i, s := range scoredOthers {
			kept[i] = s.id
		}
		sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })
		selected = append(selected, kept...)
	}

	nextSet := make(map[uint32]struct{}, len(selected))
	entered, left := 0, 0
	for _, id := range selected {
		nextSet[id] = struct{}{}
		if _, was := prevSet[id]; !was {
			entered++
		}
	}
	for id := range prevSet {
		if _, is := nextSet[id]; !is {
			left++
		}
	}
	if entered > 0 || left > 0 {
		ilog.VisibleSetChanged(ctx, m.pub, tick, ilog.VisibleSetPayload{
			PeerID:   peerID,
			Entered:  entered,
			Left:     left,
			Selected: len(selected),
		})
	}
	m.previousSets[peerID] = nextSet

	return selected
}

// Forget drops a peer's hysteresis state, e.g. on disconnect.
func (m *Manager) Forget(peerID string) {
	delete(m.previousSets, peerID)
}

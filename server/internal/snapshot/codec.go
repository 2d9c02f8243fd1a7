package snapshot

import (
	"sort"

	"skirmish/server/internal/geom"
	"skirmish/server/internal/wire"
)

// Header is the fixed 144-bit prefix of every encoded snapshot, decodable
// without touching (or needing) any per-entity state.
type Header struct {
	Sequence               uint16
	TimestampMS            uint32
	BaselineSequence       uint16
	EntityCount            uint16
	PlayerEntityID         uint32
	LastProcessedInputTick uint32
}

// Codec encodes and decodes Snapshots against the quantization envelope
// named in Config. It holds no per-peer state; one Codec is safe to reuse
// (and share, read-only) across every peer and every tick.
type Codec struct {
	PositionBits int
	VelocityBits int
	MaxVelocity  float64
	WorldMin     float64
	WorldMax     float64

	// OnClamp, if set, is invoked whenever an encoded position or velocity
	// field is outside the configured envelope and had to be clamped. This
	// is the hook the server wires to logging/wire.QuantizationClamped; it
	// is nil by default so unit tests don't need an observability stack.
	OnClamp func(entityID uint32, field string, value float64)
}

// HeaderBits is the fixed size of the header prefix in bits (§6 of the
// spec: 16+32+16+16+32+32).
const HeaderBits = 16 + 32 + 16 + 16 + 32 + 32

// PeekHeader decodes only the fixed header prefix without consuming or
// mutating any other state, so the caller can choose the right baseline
// before paying for a full Decode.
func PeekHeader(data []byte) (Header, error) {
	r := wire.NewBitReader(data)
	return readHeader(r)
}

func readHeader(r *wire.BitReader) (Header, error) {
	seq, err := r.ReadBits(16)
	if err != nil {
		return Header{}, err
	}
	ts, err := r.ReadBits(32)
	if err != nil {
		return Header{}, err
	}
	baseSeq, err := r.ReadBits(16)
	if err != nil {
		return Header{}, err
	}
	count, err := r.ReadBits(16)
	if err != nil {
		return Header{}, err
	}
	playerID, err := r.ReadBits(32)
	if err != nil {
		return Header{}, err
	}
	lastTick, err := r.ReadBits(32)
	if err != nil {
		return Header{}, err
	}
	return Header{
		Sequence:               uint16(seq),
		TimestampMS:            uint32(ts),
		BaselineSequence:       uint16(baseSeq),
		EntityCount:            uint16(count),
		PlayerEntityID:         uint32(playerID),
		LastProcessedInputTick: uint32(lastTick),
	}, nil
}

// Encode serializes s, delta-encoding against baseline when provided. The
// caller decides the baseline (typically the server's history entry for the
// peer's last acked sequence); passing nil forces a full keyframe.
func (c *Codec) Encode(s Snapshot, baseline *Snapshot) ([]byte, error) {
	w := wire.NewBitWriter()
	w.WriteBits(uint64(s.Sequence), 16)
	w.WriteBits(uint64(s.TimestampMS), 32)
	w.WriteBits(uint64(s.BaselineSequence), 16)
	w.WriteBits(uint64(len(s.States)), 16)
	w.WriteBits(uint64(s.PlayerEntityID), 32)
	w.WriteBits(uint64(s.LastProcessedInputTick), 32)

	states := ensureSorted(s.States)

	var previousID uint32
	for _, entry := range states {
		wire.WriteVarint(w, entry.ID-previousID)
		previousID = entry.ID

		if baseline != nil {
			if baseState, ok := baseline.Get(entry.ID); ok {
				changed := !StatesEqual(entry.State, baseState)
				w.WriteBit(changed)
				if !changed {
					continue
				}
			}
		}
		c.writeFullState(w, entry.ID, entry.State)
	}
	w.Flush()
	return w.Bytes(), nil
}

// Decode deserializes data, resolving deltas against baseline. It returns
// wire.ErrBaselineMismatch when the packet declares a baseline sequence
// that baseline does not match (including baseline == nil); the caller
// must discard the packet and request a keyframe rather than attempt a
// partial decode — the canonical policy documented in spec.md §4.2.
func (c *Codec) Decode(data []byte, baseline *Snapshot) (Snapshot, error) {
	r := wire.NewBitReader(data)
	header, err := readHeader(r)
	if err != nil {
		return Snapshot{}, err
	}

	if header.BaselineSequence != 0 {
		if baseline == nil || baseline.Sequence != header.BaselineSequence {
			return Snapshot{}, wire.ErrBaselineMismatch
		}
	}

	result := Snapshot{
		Sequence:               header.Sequence,
		TimestampMS:            header.TimestampMS,
		BaselineSequence:       header.BaselineSequence,
		PlayerEntityID:         header.PlayerEntityID,
		LastProcessedInputTick: header.LastProcessedInputTick,
		States:                 make([]EntityEntry, 0, header.EntityCount),
	}

	var previousID uint32
	for i := 0; i < int(header.EntityCount); i++ {
		delta, err := wire.ReadVarint(r)
		if err != nil {
			return Snapshot{}, err
		}
		id := previousID + delta
		previousID = id

		var baseState EntityState
		var hasBaseline bool
		if baseline != nil {
			baseState, hasBaseline = baseline.Get(id)
		}

		if hasBaseline {
			// Symmetry contract: the reader reads the `changed` bit under
			// exactly the condition the writer used to write it
			// (baseline != nil && baseline.Contains(id)). Any asymmetry
			// here desynchronizes the rest of the bit stream.
			changed, err := r.ReadBit()
			if err != nil {
				return Snapshot{}, err
			}
			if !changed {
				result.States = append(result.States, EntityEntry{ID: id, State: baseState})
				continue
			}
		}

		state, err := c.readFullState(r)
		if err != nil {
			return Snapshot{}, err
		}
		result.States = append(result.States, EntityEntry{ID: id, State: state})
	}

	return result, nil
}

func (c *Codec) writeFullState(w *wire.BitWriter, entityID uint32, st EntityState) {
	c.noteIfClamped(entityID, "position.x", st.Position.X, c.WorldMin, c.WorldMax)
	c.noteIfClamped(entityID, "position.y", st.Position.Y, c.WorldMin, c.WorldMax)
	c.noteIfClamped(entityID, "velocity.x", st.Velocity.X, -c.MaxVelocity, c.MaxVelocity)
	c.noteIfClamped(entityID, "velocity.y", st.Velocity.Y, -c.MaxVelocity, c.MaxVelocity)

	w.WriteBits(uint64(wire.QuantizePosition(st.Position.X, c.WorldMin, c.WorldMax, c.PositionBits)), uint(c.PositionBits))
	w.WriteBits(uint64(wire.QuantizePosition(st.Position.Y, c.WorldMin, c.WorldMax, c.PositionBits)), uint(c.PositionBits))
	w.WriteBits(uint64(wire.QuantizeVelocity(st.Velocity.X, c.MaxVelocity, c.VelocityBits)), uint(c.VelocityBits))
	w.WriteBits(uint64(wire.QuantizeVelocity(st.Velocity.Y, c.MaxVelocity, c.VelocityBits)), uint(c.VelocityBits))
	w.WriteBits(uint64(st.SpriteFrame), 8)
	w.WriteBits(uint64(st.StateFlags), 8)
	w.WriteBits(uint64(st.EntityType), 4)
}

func (c *Codec) readFullState(r *wire.BitReader) (EntityState, error) {
	px, err := r.ReadBits(uint(c.PositionBits))
	if err != nil {
		return EntityState{}, err
	}
	py, err := r.ReadBits(uint(c.PositionBits))
	if err != nil {
		return EntityState{}, err
	}
	vx, err := r.ReadBits(uint(c.VelocityBits))
	if err != nil {
		return EntityState{}, err
	}
	vy, err := r.ReadBits(uint(c.VelocityBits))
	if err != nil {
		return EntityState{}, err
	}
	sprite, err := r.ReadBits(8)
	if err != nil {
		return EntityState{}, err
	}
	flags, err := r.ReadBits(8)
	if err != nil {
		return EntityState{}, err
	}
	etype, err := r.ReadBits(4)
	if err != nil {
		return EntityState{}, err
	}

	return EntityState{
		Position: geom.Vec2{
			X: wire.DequantizePosition(uint32(px), c.WorldMin, c.WorldMax, c.PositionBits),
			Y: wire.DequantizePosition(uint32(py), c.WorldMin, c.WorldMax, c.PositionBits),
		},
		Velocity: geom.Vec2{
			X: wire.DequantizeVelocity(uint32(vx), c.MaxVelocity, c.VelocityBits),
			Y: wire.DequantizeVelocity(uint32(vy), c.MaxVelocity, c.VelocityBits),
		},
		SpriteFrame: uint8(sprite),
		StateFlags:  uint8(flags),
		EntityType:  EntityType(etype),
	}, nil
}

func (c *Codec) noteIfClamped(entityID uint32, field string, value, lo, hi float64) {
	if c.OnClamp == nil {
		return
	}
	if value < lo || value > hi {
		c.OnClamp(entityID, field, value)
	}
}

func ensureSorted(states []EntityEntry) []EntityEntry {
	for i := 1; i < len(states); i++ {
		if states[i].ID <= states[i-1].ID {
			sorted := append([]EntityEntry(nil), states...)
			sort.Slice(sorted, func(a, b int) bool { return sorted[a].ID < sorted[b].ID })
			return sorted
		}
	}
	return states
}

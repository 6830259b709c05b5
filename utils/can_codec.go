package utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.einride.tech/can"
)

// toRaw scales a physical value into the signal's raw field. Values outside
// [Min, Max] are clamped first, then the raw integer to the field width.
func (s SignalDef) toRaw(v float64) (uint64, error) {
	if math.IsNaN(v) {
		return 0, fmt.Errorf("signal %s: NaN value", s.Name)
	}
	if s.Min < s.Max {
		v = clamp(v, s.Min, s.Max)
	}
	raw := clampRaw(int64(math.Round((v-s.Offset)/s.Factor)), s.BitLength, s.Signed)
	return rawToUnsigned(raw, s.BitLength), nil
}

// fromRaw is the inverse of toRaw, up to quantisation.
func (s SignalDef) fromRaw(field uint64) float64 {
	return float64(unsignedToRawInt64(field, s.BitLength, s.Signed))*s.Factor + s.Offset
}

// EncodeFrame packs physical values into the payload of frameName. Signals
// missing from values take their default; names the frame does not carry
// are rejected.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) ([]byte, uint32, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return nil, 0, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, 0, fmt.Errorf("frame %s: DLC %d out of range", fd.Name, fd.DLC)
	}
	for name := range values {
		if _, ok := fd.Signal(name); !ok {
			return nil, 0, fmt.Errorf("frame %s has no signal %q", fd.Name, name)
		}
	}

	var word uint64
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		field, err := s.toRaw(v)
		if err != nil {
			return nil, 0, fmt.Errorf("frame %s: %w", fd.Name, err)
		}
		word = setBits(word, s.StartBit, s.BitLength, field)
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	return buf[:fd.DLC], fd.ID, nil
}

// EncodeEinrideFrame is EncodeFrame wrapped in a can.Frame.
func (m *CANMap) EncodeEinrideFrame(frameName string, values map[string]float64) (can.Frame, error) {
	payload, id, err := m.EncodeFrame(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}
	f := can.Frame{ID: id, Length: uint8(len(payload))}
	copy(f.Data[:], payload)
	return f, nil
}

// DecodeFrame unpacks every signal of the frame with the given ID.
func (m *CANMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("frame %s (0x%X): need %d bytes, got %d", fd.Name, frameID, fd.DLC, len(data))
	}

	var buf [8]byte
	copy(buf[:], data[:fd.DLC])
	word := binary.LittleEndian.Uint64(buf[:])

	values := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		values[s.Name] = s.fromRaw(getBits(word, s.StartBit, s.BitLength))
	}
	return values, nil
}

// DecodeEinrideFrame decodes a received can.Frame by its ID.
func (m *CANMap) DecodeEinrideFrame(f can.Frame) (*FrameDef, map[string]float64, error) {
	fd, err := m.FrameByID(f.ID)
	if err != nil {
		return nil, nil, err
	}
	values, err := m.DecodeFrame(f.ID, f.Data[:f.Length])
	if err != nil {
		return nil, nil, err
	}
	return fd, values, nil
}

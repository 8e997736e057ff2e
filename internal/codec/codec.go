// Package codec reads and writes the DCG binary replay format.
//
// Layout, little-endian with no padding:
//
//	u8[3]   'D' 'C' 'G'
//	string  version
//	i32     path count, then that many strings
//	i32     keyframe count, then per keyframe:
//	          f32      time
//	          u8       sync frame (0/1)
//	          f32[3]   body position
//	          f32[4]   body rotation x, y, z, w
//	          i32      position delta count, then {u8 index, f32[3]}
//	          i32      rotation delta count, then {u8 index, f32[4]}
//
// Strings are a uvarint byte length followed by UTF-8 bytes.
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
)

var magic = [3]byte{'D', 'C', 'G'}

// Fixed record sizes, used to reject counts that cannot fit in what is left.
const (
	minKeyframeSize = 4 + 1 + 12 + 16 + 4 + 4
	positionSize    = 1 + 12
	rotationSize    = 1 + 16
	minStringSize   = 1
	maxStringLength = 1 << 20
)

// Marshal encodes rf into a new byte slice.
func Marshal(rf keyframe.ReplayFile) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes rf to w.
func Encode(w io.Writer, rf keyframe.ReplayFile) error {
	if len(rf.Paths) > keyframe.MaxNodes {
		return &keyframe.CapacityError{Nodes: len(rf.Paths)}
	}

	bw := bufio.NewWriter(w)
	e := encoder{w: bw}

	e.bytes(magic[:])
	e.string(rf.Version)
	e.count(len(rf.Paths))
	for _, p := range rf.Paths {
		e.string(p)
	}
	e.count(len(rf.Keyframes))
	for _, kf := range rf.Keyframes {
		e.keyframe(kf)
	}

	if e.err != nil {
		return fmt.Errorf("encoding replay: %w", e.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("encoding replay: %w", err)
	}
	return nil
}

// Unmarshal decodes a replay from data.
func Unmarshal(data []byte) (keyframe.ReplayFile, error) {
	d := decoder{buf: data}

	var prefix [3]byte
	copy(prefix[:], d.take(3))
	if d.err != nil {
		return keyframe.ReplayFile{}, d.err
	}
	if prefix != magic {
		return keyframe.ReplayFile{}, &FormatError{Offset: 0, Reason: fmt.Sprintf("bad magic %q", prefix[:])}
	}

	version := d.string()
	var paths []string
	if n := d.count(minStringSize); n > 0 {
		paths = make([]string, n)
		for i := range paths {
			paths[i] = d.string()
		}
	}
	if d.err != nil {
		return keyframe.ReplayFile{}, d.err
	}

	keyframes := make([]keyframe.Keyframe, d.count(minKeyframeSize))
	for i := range keyframes {
		keyframes[i] = d.keyframe()
		if d.err != nil {
			return keyframe.ReplayFile{}, d.err
		}
	}
	if d.err != nil {
		return keyframe.ReplayFile{}, d.err
	}

	return keyframe.New(version, paths, keyframes)
}

// Decode reads a whole replay from r. Bytes after the last keyframe are ignored.
func Decode(r io.Reader) (keyframe.ReplayFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return keyframe.ReplayFile{}, fmt.Errorf("reading replay: %w", err)
	}
	return Unmarshal(data)
}

// ReadFile decodes the replay stored at path.
func ReadFile(path string) (keyframe.ReplayFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return keyframe.ReplayFile{}, fmt.Errorf("reading replay file: %w", err)
	}
	rf, err := Unmarshal(data)
	if err != nil {
		return keyframe.ReplayFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

// WriteFile encodes rf to path, replacing any existing file.
func WriteFile(path string, rf keyframe.ReplayFile) error {
	data, err := Marshal(rf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type encoder struct {
	w       *bufio.Writer
	scratch [binary.MaxVarintLen64]byte
	err     error
}

func (e *encoder) bytes(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) u8(v uint8) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(v)
}

func (e *encoder) count(n int) {
	binary.LittleEndian.PutUint32(e.scratch[:4], uint32(int32(n)))
	e.bytes(e.scratch[:4])
}

func (e *encoder) f32(v float32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], math.Float32bits(v))
	e.bytes(e.scratch[:4])
}

func (e *encoder) string(s string) {
	n := binary.PutUvarint(e.scratch[:], uint64(len(s)))
	e.bytes(e.scratch[:n])
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func (e *encoder) vec3(v mgl32.Vec3) {
	e.f32(v[0])
	e.f32(v[1])
	e.f32(v[2])
}

func (e *encoder) quat(q mgl32.Quat) {
	e.vec3(q.V)
	e.f32(q.W)
}

func (e *encoder) keyframe(kf keyframe.Keyframe) {
	e.f32(kf.Time)
	if kf.SyncFrame {
		e.u8(1)
	} else {
		e.u8(0)
	}
	e.vec3(kf.BodyPosition)
	e.quat(kf.BodyRotation)

	e.count(len(kf.Positions))
	for _, p := range kf.Positions {
		e.u8(p.Index)
		e.vec3(p.Position)
	}
	e.count(len(kf.Rotations))
	for _, r := range kf.Rotations {
		e.u8(r.Index)
		e.quat(r.Rotation)
	}
}

// decoder walks a byte slice. The first failure sticks in err and every
// later read returns zero values.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(reason string) {
	if d.err == nil {
		d.err = &FormatError{Offset: d.off, Reason: reason}
	}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = &FormatError{Offset: d.off, Reason: fmt.Sprintf("need %d bytes, %d left", n, len(d.buf)-d.off), Err: io.ErrUnexpectedEOF}
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) f32() float32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// count reads an array length and checks that at least minSize bytes per
// element remain, so a corrupt length cannot force a huge allocation.
func (d *decoder) count(minSize int) int {
	b := d.take(4)
	if b == nil {
		return 0
	}
	n := int32(binary.LittleEndian.Uint32(b))
	if n < 0 {
		d.fail(fmt.Sprintf("negative array length %d", n))
		return 0
	}
	if int64(n)*int64(minSize) > int64(len(d.buf)-d.off) {
		d.err = &FormatError{Offset: d.off, Reason: fmt.Sprintf("array length %d exceeds remaining data", n), Err: io.ErrUnexpectedEOF}
		return 0
	}
	return int(n)
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	n, size := binary.Uvarint(d.buf[d.off:])
	if size <= 0 {
		d.fail("bad string length prefix")
		return ""
	}
	d.off += size
	if n > maxStringLength {
		d.fail(fmt.Sprintf("string length %d too large", n))
		return ""
	}
	return string(d.take(int(n)))
}

func (d *decoder) vec3() mgl32.Vec3 {
	return mgl32.Vec3{d.f32(), d.f32(), d.f32()}
}

func (d *decoder) quat() mgl32.Quat {
	v := d.vec3()
	return mgl32.Quat{V: v, W: d.f32()}
}

func (d *decoder) keyframe() keyframe.Keyframe {
	kf := keyframe.Keyframe{Time: d.f32()}
	switch d.u8() {
	case 0:
	case 1:
		kf.SyncFrame = true
	default:
		d.fail("sync flag is not a bool")
	}
	kf.BodyPosition = d.vec3()
	kf.BodyRotation = d.quat()

	if n := d.count(positionSize); n > 0 {
		kf.Positions = make([]keyframe.PositionDelta, n)
		for i := range kf.Positions {
			kf.Positions[i] = keyframe.PositionDelta{Index: d.u8(), Position: d.vec3()}
		}
	}
	if n := d.count(rotationSize); n > 0 {
		kf.Rotations = make([]keyframe.RotationDelta, n)
		for i := range kf.Rotations {
			kf.Rotations[i] = keyframe.RotationDelta{Index: d.u8(), Rotation: d.quat()}
		}
	}
	return kf
}

package archive

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/abcimport/pkg/math"
)

const (
	packMagic   = "ABC Pack Archive"
	packVersion = 0x100
)

// PackHeader is the fixed-size header at the start of a packed archive.
type PackHeader struct {
	Magic        [16]byte
	Version      uint32
	TableOffset  uint64
	ObjectCount  uint32
	TimePerCycle float32
	HasBounds    uint32
	BoundsMin    [3]float32
	BoundsMax    [3]float32
}

// sampleEntry locates one compressed sample blob.
type sampleEntry struct {
	Offset           uint64
	CompressedSize   uint32
	UncompressedSize uint32
}

// PackReader reads a packed archive. Sample reads seek a shared file handle,
// so a PackReader must not be read from several goroutines at once.
type PackReader struct {
	file    *os.File
	header  PackHeader
	top     *Object
	samples map[int][]sampleEntry
}

// OpenPack opens a packed archive.
func OpenPack(path string) (*PackReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	r := &PackReader{
		file:    file,
		samples: make(map[int][]sampleEntry),
	}

	if err := r.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidArchive, err)
	}

	if err := r.readObjectTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: reading object table: %v", ErrInvalidArchive, err)
	}

	return r, nil
}

func (r *PackReader) readHeader() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if err := binary.Read(r.file, binary.LittleEndian, &r.header); err != nil {
		return err
	}

	if string(r.header.Magic[:]) != packMagic {
		return fmt.Errorf("invalid pack magic")
	}

	if r.header.Version != packVersion {
		return fmt.Errorf("unsupported pack version: 0x%x", r.header.Version)
	}

	return nil
}

func (r *PackReader) readObjectTable() error {
	if _, err := r.file.Seek(int64(r.header.TableOffset), io.SeekStart); err != nil {
		return err
	}

	var sizes [2]uint32
	if err := binary.Read(r.file, binary.LittleEndian, &sizes); err != nil {
		return err
	}
	table, err := inflate(r.file, sizes[0], sizes[1])
	if err != nil {
		return err
	}

	d := &decoder{buf: table}
	objects := make([]*Object, 0, r.header.ObjectCount)
	for i := uint32(0); i < r.header.ObjectCount; i++ {
		parent := d.int32()
		obj := &Object{id: int(i)}
		obj.Kind = Kind(d.uint8())
		obj.Constant = d.uint8() != 0
		obj.Name = d.string()
		obj.NumSamples = int(d.uint32())
		obj.Sampling.Start = d.float32()
		obj.Sampling.PerCycle = d.float32()
		obj.SelfBounds = d.box()
		obj.ChildBounds = d.box()
		for n := d.uint16(); n > 0 && d.err == nil; n-- {
			fs := FaceSet{Name: d.string()}
			fs.Faces = make([]int32, d.count(4))
			d.read(fs.Faces)
			obj.FaceSets = append(obj.FaceSets, fs)
		}
		entries := make([]sampleEntry, d.count(16))
		d.read(entries)
		if d.err != nil {
			return d.err
		}
		r.samples[obj.id] = entries

		if parent >= 0 {
			if int(parent) >= len(objects) {
				return fmt.Errorf("object %d has forward parent %d", i, parent)
			}
			obj.Parent = objects[parent]
			obj.Parent.Children = append(obj.Parent.Children, obj)
		} else if r.top == nil {
			r.top = obj
		}
		objects = append(objects, obj)
	}
	return nil
}

func inflate(src io.Reader, compressedSize, size uint32) ([]byte, error) {
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(src, compressed); err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data := make([]byte, size)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *PackReader) blob(obj *Object, index int) ([]byte, error) {
	entries, ok := r.samples[obj.id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, obj.Path())
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("%w: %s sample %d of %d", ErrSampleRange, obj.Path(), index, len(entries))
	}
	e := entries[index]
	if _, err := r.file.Seek(int64(e.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	return inflate(r.file, e.CompressedSize, e.UncompressedSize)
}

// Top returns the top object, or nil for an empty archive.
func (r *PackReader) Top() *Object { return r.top }

// Info returns archive metadata.
func (r *PackReader) Info() Info {
	info := Info{TimePerCycle: r.header.TimePerCycle}
	if r.header.HasBounds != 0 {
		info.Bounds = math.Box{Min: math.V3(r.header.BoundsMin), Max: math.V3(r.header.BoundsMax), Valid: true}
	}
	return info
}

// ConcurrentReads is false: reads share the file offset.
func (r *PackReader) ConcurrentReads() bool { return false }

// ReadXform decodes transform sample index of obj.
func (r *PackReader) ReadXform(obj *Object, index int) (XformSample, error) {
	if obj.Kind != KindXform {
		return XformSample{}, fmt.Errorf("%w: %s is not an xform", ErrUnknownObject, obj.Path())
	}
	data, err := r.blob(obj, index)
	if err != nil {
		return XformSample{}, fmt.Errorf("reading %s: %w", obj.Path(), err)
	}
	var s XformSample
	d := &decoder{buf: data}
	d.read(&s.Matrix)
	return s, d.err
}

// ReadPolyMesh decodes mesh sample index of obj.
func (r *PackReader) ReadPolyMesh(obj *Object, index int) (*PolyMeshSample, error) {
	if obj.Kind != KindPolyMesh {
		return nil, fmt.Errorf("%w: %s is not a polymesh", ErrUnknownObject, obj.Path())
	}
	data, err := r.blob(obj, index)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", obj.Path(), err)
	}
	d := &decoder{buf: data}
	s := &PolyMeshSample{}
	s.Positions = make([]math.Vec3, d.count(12))
	d.read(s.Positions)
	s.FaceCounts = make([]int32, d.count(4))
	d.read(s.FaceCounts)
	s.FaceIndices = make([]int32, d.count(4))
	d.read(s.FaceIndices)
	if n := d.count(12); n > 0 {
		s.Normals = make([]math.Vec3, n)
		d.read(s.Normals)
	}
	if n := d.count(8); n > 0 {
		s.UVs = make([]math.Vec2, n)
		d.read(s.UVs)
	}
	if n := d.count(16); n > 0 {
		s.Colors = make([][4]float32, n)
		d.read(s.Colors)
	}
	if d.err != nil {
		return nil, fmt.Errorf("decoding %s sample %d: %w", obj.Path(), index, d.err)
	}
	return s, nil
}

// Close closes the archive file.
func (r *PackReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// decoder reads little-endian values from a byte slice. The first failure
// sticks and turns every later read into a no-op.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	n := binary.Size(v)
	if n < 0 || d.off+n > len(d.buf) {
		d.err = ErrTruncated
		return
	}
	if _, err := binary.Decode(d.buf[d.off:d.off+n], binary.LittleEndian, v); err != nil {
		d.err = err
		return
	}
	d.off += n
}

func (d *decoder) uint8() uint8 {
	var v uint8
	d.read(&v)
	return v
}

func (d *decoder) uint16() uint16 {
	var v uint16
	d.read(&v)
	return v
}

func (d *decoder) uint32() uint32 {
	var v uint32
	d.read(&v)
	return v
}

func (d *decoder) int32() int32 {
	var v int32
	d.read(&v)
	return v
}

func (d *decoder) float32() float32 {
	var v float32
	d.read(&v)
	return v
}

// count reads an element count and rejects counts that cannot fit in the
// remaining buffer at elemSize bytes each.
func (d *decoder) count(elemSize int) int {
	n := int(d.uint32())
	if d.err == nil && n*elemSize > len(d.buf)-d.off {
		d.err = ErrTruncated
		return 0
	}
	return n
}

func (d *decoder) string() string {
	n := int(d.uint16())
	if d.err != nil {
		return ""
	}
	if d.off+n > len(d.buf) {
		d.err = ErrTruncated
		return ""
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s
}

func (d *decoder) box() math.Box {
	valid := d.uint8() != 0
	var minMax [6]float32
	d.read(&minMax)
	if !valid {
		return math.Box{}
	}
	return math.Box{
		Min:   math.Vec3{X: minMax[0], Y: minMax[1], Z: minMax[2]},
		Max:   math.Vec3{X: minMax[3], Y: minMax[4], Z: minMax[5]},
		Valid: true,
	}
}

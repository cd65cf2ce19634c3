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

// WritePack writes every object and sample of src to a packed archive at path.
func WritePack(path string, src Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := writePack(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePack(w io.WriteSeeker, src Reader) error {
	info := src.Info()
	header := PackHeader{Version: packVersion, TimePerCycle: info.TimePerCycle}
	copy(header.Magic[:], packMagic)
	if info.Bounds.Valid {
		header.HasBounds = 1
		header.BoundsMin = info.Bounds.Min.Array()
		header.BoundsMax = info.Bounds.Max.Array()
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	offset := uint64(binary.Size(&header))

	var objects []*Object
	if top := src.Top(); top != nil {
		top.Walk(func(o *Object) { objects = append(objects, o) })
	}
	index := make(map[*Object]int32, len(objects))

	table := &encoder{}
	for i, obj := range objects {
		index[obj] = int32(i)
		parent := int32(-1)
		if obj.Parent != nil {
			parent = index[obj.Parent]
		}

		var entries []sampleEntry
		if obj.Kind == KindXform || obj.Kind == KindPolyMesh {
			for s := 0; s < obj.NumSamples; s++ {
				blob, err := encodeSample(src, obj, s)
				if err != nil {
					return err
				}
				compressed, err := deflate(blob)
				if err != nil {
					return err
				}
				if _, err := w.Write(compressed); err != nil {
					return fmt.Errorf("writing sample: %w", err)
				}
				entries = append(entries, sampleEntry{
					Offset:           offset,
					CompressedSize:   uint32(len(compressed)),
					UncompressedSize: uint32(len(blob)),
				})
				offset += uint64(len(compressed))
			}
		}

		table.write(parent)
		table.write(uint8(obj.Kind))
		table.write(boolByte(obj.Constant))
		table.string(obj.Name)
		table.write(uint32(obj.NumSamples))
		table.write(obj.Sampling.Start)
		table.write(obj.Sampling.PerCycle)
		table.box(obj.SelfBounds)
		table.box(obj.ChildBounds)
		table.write(uint16(len(obj.FaceSets)))
		for _, fs := range obj.FaceSets {
			table.string(fs.Name)
			table.write(uint32(len(fs.Faces)))
			table.write(fs.Faces)
		}
		table.write(uint32(len(entries)))
		table.write(entries)
	}
	if table.err != nil {
		return fmt.Errorf("encoding object table: %w", table.err)
	}

	compressed, err := deflate(table.buf.Bytes())
	if err != nil {
		return err
	}
	sizes := [2]uint32{uint32(len(compressed)), uint32(table.buf.Len())}
	if err := binary.Write(w, binary.LittleEndian, sizes); err != nil {
		return fmt.Errorf("writing object table: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("writing object table: %w", err)
	}

	header.TableOffset = offset
	header.ObjectCount = uint32(len(objects))
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("rewriting header: %w", err)
	}
	return nil
}

func encodeSample(src Reader, obj *Object, index int) ([]byte, error) {
	e := &encoder{}
	switch obj.Kind {
	case KindXform:
		x, err := src.ReadXform(obj, index)
		if err != nil {
			return nil, err
		}
		e.write(x.Matrix)
	case KindPolyMesh:
		m, err := src.ReadPolyMesh(obj, index)
		if err != nil {
			return nil, err
		}
		e.slice(len(m.Positions), m.Positions)
		e.slice(len(m.FaceCounts), m.FaceCounts)
		e.slice(len(m.FaceIndices), m.FaceIndices)
		e.slice(len(m.Normals), m.Normals)
		e.slice(len(m.UVs), m.UVs)
		e.slice(len(m.Colors), m.Colors)
	}
	return e.buf.Bytes(), e.err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(&e.buf, binary.LittleEndian, v)
}

func (e *encoder) slice(n int, v any) {
	e.write(uint32(n))
	if n > 0 {
		e.write(v)
	}
}

func (e *encoder) string(s string) {
	e.write(uint16(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) box(b math.Box) {
	e.write(boolByte(b.Valid))
	e.write([6]float32{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z})
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

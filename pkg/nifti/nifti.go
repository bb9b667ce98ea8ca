// Package nifti reads and writes single-file NIfTI-1 volumes (.nii, .nii.gz).
package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

const (
	headerSize = 348
	dataOffset = 352

	// MaxVoxels bounds the grid size accepted by Read
	MaxVoxels = 1 << 28
)

// datatype codes of the NIfTI-1 header
const (
	typeUint8   = 2
	typeInt16   = 4
	typeInt32   = 8
	typeFloat32 = 16
	typeFloat64 = 64
	typeInt8    = 256
	typeUint16  = 512
	typeUint32  = 768
)

type sampleType struct {
	name  string
	width int
}

var sampleTypes = map[int16]sampleType{
	typeUint8:   {"uint8", 1},
	typeInt16:   {"int16", 2},
	typeInt32:   {"int32", 4},
	typeFloat32: {"float32", 4},
	typeFloat64: {"float64", 8},
	typeInt8:    {"int8", 1},
	typeUint16:  {"uint16", 2},
	typeUint32:  {"uint32", 4},
}

// header holds the fields of the NIfTI-1 header this package uses.
type header struct {
	Dim       [8]int16
	Datatype  int16
	Bitpix    int16
	Pixdim    [8]float32
	VoxOffset float32
	SclSlope  float32
	SclInter  float32
}

// Load reads a volume from a .nii or .nii.gz file. The volume name is the
// file's base name.
func Load(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open volume"), "path", path)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to open gzip stream"), "path", path)
		}
		defer gz.Close()
		r = gz
	}

	vol, err := Read(r)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	vol.Name = filepath.Base(path)
	return vol, nil
}

// Read decodes an uncompressed NIfTI-1 stream. Volumes with more than three
// dimensions keep only their first 3D volume. Intensity scaling from the
// header is applied.
func Read(r io.Reader) (*models.Volume, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, zerr.Wrap(models.ErrUnsupportedFormat, "truncated NIfTI header")
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch {
	case binary.LittleEndian.Uint32(raw[0:4]) == headerSize:
	case binary.BigEndian.Uint32(raw[0:4]) == headerSize:
		order = binary.BigEndian
	default:
		return nil, zerr.Wrap(models.ErrUnsupportedFormat, "not a NIfTI-1 header")
	}

	var h header
	for i := range h.Dim {
		h.Dim[i] = int16(order.Uint16(raw[40+2*i:]))
	}
	h.Datatype = int16(order.Uint16(raw[70:]))
	h.Bitpix = int16(order.Uint16(raw[72:]))
	for i := range h.Pixdim {
		h.Pixdim[i] = math.Float32frombits(order.Uint32(raw[76+4*i:]))
	}
	h.VoxOffset = math.Float32frombits(order.Uint32(raw[108:]))
	h.SclSlope = math.Float32frombits(order.Uint32(raw[112:]))
	h.SclInter = math.Float32frombits(order.Uint32(raw[116:]))

	if h.Dim[0] < 3 {
		return nil, zerr.With(zerr.Wrap(models.ErrUnsupportedFormat, "volume needs at least three dimensions"), "ndim", h.Dim[0])
	}
	shape := [3]int{int(h.Dim[1]), int(h.Dim[2]), int(h.Dim[3])}
	for axis, n := range shape {
		if n <= 0 {
			err := zerr.Wrap(models.ErrUnsupportedFormat, "volume extent must be positive")
			err = zerr.With(err, "axis", axis)
			return nil, zerr.With(err, "extent", n)
		}
	}
	count := shape[0] * shape[1] * shape[2]
	if count > MaxVoxels {
		err := zerr.Wrap(models.ErrUnsupportedFormat, "volume too large")
		err = zerr.With(err, "voxels", count)
		return nil, zerr.With(err, "limit", MaxVoxels)
	}

	st, ok := sampleTypes[h.Datatype]
	if !ok {
		return nil, zerr.With(zerr.Wrap(models.ErrUnsupportedFormat, "unsupported datatype"), "datatype", h.Datatype)
	}
	if int(h.Bitpix) != 8*st.width {
		err := zerr.Wrap(models.ErrUnsupportedFormat, "bitpix does not match datatype")
		err = zerr.With(err, "bitpix", h.Bitpix)
		return nil, zerr.With(err, "datatype", st.name)
	}

	// skip to the first sample
	if skip := int64(h.VoxOffset) - headerSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, zerr.Wrap(models.ErrUnsupportedFormat, "truncated NIfTI extension block")
		}
	}

	payload := make([]byte, count*st.width)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, zerr.Wrap(models.ErrUnsupportedFormat, "truncated NIfTI data")
	}

	data := decode(payload, h.Datatype, order, count)
	if h.SclSlope != 0 && (h.SclSlope != 1 || h.SclInter != 0) {
		slope, inter := float64(h.SclSlope), float64(h.SclInter)
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	spacing := r3.Vec{X: positive(h.Pixdim[1]), Y: positive(h.Pixdim[2]), Z: positive(h.Pixdim[3])}
	vol, err := models.NewVolume(data, shape, spacing)
	if err != nil {
		return nil, err
	}
	vol.DType = st.name
	return vol, nil
}

func decode(b []byte, datatype int16, order binary.ByteOrder, count int) []float64 {
	data := make([]float64, count)
	for i := range data {
		switch datatype {
		case typeUint8:
			data[i] = float64(b[i])
		case typeInt8:
			data[i] = float64(int8(b[i]))
		case typeInt16:
			data[i] = float64(int16(order.Uint16(b[2*i:])))
		case typeUint16:
			data[i] = float64(order.Uint16(b[2*i:]))
		case typeInt32:
			data[i] = float64(int32(order.Uint32(b[4*i:])))
		case typeUint32:
			data[i] = float64(order.Uint32(b[4*i:]))
		case typeFloat32:
			data[i] = float64(math.Float32frombits(order.Uint32(b[4*i:])))
		case typeFloat64:
			data[i] = math.Float64frombits(order.Uint64(b[8*i:]))
		}
	}
	return data
}

// positive maps missing or invalid voxel sizes to 1 mm.
func positive(v float32) float64 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 1
	}
	return float64(v)
}

// Save writes data laid out for vol as a float32 NIfTI-1 file, gzipped when
// path ends in .gz.
func Save(path string, vol *models.Volume, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create volume file"), "path", path)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if err := Write(w, vol, data); err != nil {
		return zerr.With(err, "path", path)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to finish gzip stream"), "path", path)
		}
	}
	return f.Close()
}

// Write encodes data laid out for vol as a little-endian float32 NIfTI-1
// stream.
func Write(w io.Writer, vol *models.Volume, data []float64) error {
	if len(data) != vol.Len() {
		return zerr.Wrap(models.ErrShapeMismatch, "sample count does not match volume shape")
	}

	le := binary.LittleEndian
	hdr := make([]byte, dataOffset)
	le.PutUint32(hdr[0:], headerSize)
	dims := [8]int16{3, int16(vol.Shape[0]), int16(vol.Shape[1]), int16(vol.Shape[2]), 1, 1, 1, 1}
	for i, d := range dims {
		le.PutUint16(hdr[40+2*i:], uint16(d))
	}
	le.PutUint16(hdr[70:], typeFloat32)
	le.PutUint16(hdr[72:], 32)
	pixdim := [8]float32{1, float32(vol.Spacing.X), float32(vol.Spacing.Y), float32(vol.Spacing.Z), 1, 1, 1, 1}
	for i, p := range pixdim {
		le.PutUint32(hdr[76+4*i:], math.Float32bits(p))
	}
	le.PutUint32(hdr[108:], math.Float32bits(dataOffset))
	le.PutUint32(hdr[112:], math.Float32bits(1))
	// xyzt_units: millimetres
	hdr[123] = 2
	copy(hdr[344:], "n+1\x00")

	var buf bytes.Buffer
	buf.Grow(len(hdr) + 4*len(data))
	buf.Write(hdr)
	var sample [4]byte
	for _, v := range data {
		le.PutUint32(sample[:], math.Float32bits(float32(v)))
		buf.Write(sample[:])
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return zerr.Wrap(err, "failed to write NIfTI data")
	}
	return nil
}

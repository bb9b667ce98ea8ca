package nifti_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
	"volmesh/pkg/nifti"
)

// rawHeader builds a minimal header for an int16 volume.
func rawHeader(order binary.ByteOrder, dims [8]int16, slope, inter float32) []byte {
	hdr := make([]byte, 352)
	order.PutUint32(hdr[0:], 348)
	for i, d := range dims {
		order.PutUint16(hdr[40+2*i:], uint16(d))
	}
	order.PutUint16(hdr[70:], 4)
	order.PutUint16(hdr[72:], 16)
	for i, p := range []float32{1, 0.5, 2, 3} {
		order.PutUint32(hdr[76+4*i:], math.Float32bits(p))
	}
	order.PutUint32(hdr[108:], math.Float32bits(352))
	order.PutUint32(hdr[112:], math.Float32bits(slope))
	order.PutUint32(hdr[116:], math.Float32bits(inter))
	copy(hdr[344:], "n+1\x00")
	return hdr
}

func TestReadBigEndianInt16(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(rawHeader(binary.BigEndian, [8]int16{3, 2, 1, 2, 1, 1, 1, 1}, 0, 0))
	for _, v := range []int16{-3, 7, 0, 1000} {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, v))
	}

	vol, err := nifti.Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, [3]int{2, 1, 2}, vol.Shape)
	assert.Equal(t, r3.Vec{X: 0.5, Y: 2, Z: 3}, vol.Spacing)
	assert.Equal(t, "int16", vol.DType)
	assert.Equal(t, []float64{-3, 7, 0, 1000}, vol.Data)
	assert.Equal(t, models.Fingerprint(vol.Data), vol.Fingerprint)
}

func TestReadAppliesScalingAndFirstVolume(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(rawHeader(binary.LittleEndian, [8]int16{4, 1, 1, 2, 2, 1, 1, 1}, 2, 1))
	for _, v := range []int16{1, 2, 50, 60} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}

	vol, err := nifti.Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 5}, vol.Data)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := nifti.Read(bytes.NewReader(make([]byte, 400)))
	require.ErrorIs(t, err, models.ErrUnsupportedFormat)

	_, err = nifti.Read(bytes.NewReader([]byte("short")))
	require.ErrorIs(t, err, models.ErrUnsupportedFormat)

	var buf bytes.Buffer
	buf.Write(rawHeader(binary.LittleEndian, [8]int16{2, 4, 4, 1, 1, 1, 1, 1}, 0, 0))
	_, err = nifti.Read(&buf)
	require.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestReadRejectsInconsistentHeader(t *testing.T) {
	tests := []struct {
		name     string
		dims     [8]int16
		datatype uint16
		bitpix   uint16
	}{
		{"bitpix smaller than float32", [8]int16{3, 2, 2, 2, 1, 1, 1, 1}, 16, 8},
		{"bitpix larger than int16", [8]int16{3, 2, 2, 2, 1, 1, 1, 1}, 4, 64},
		{"two negative extents", [8]int16{3, -2, -2, 2, 1, 1, 1, 1}, 4, 16},
		{"zero extent", [8]int16{3, 2, 0, 2, 1, 1, 1, 1}, 4, 16},
		{"too many voxels", [8]int16{3, 32767, 32767, 32767, 1, 1, 1, 1}, 4, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := rawHeader(binary.LittleEndian, tt.dims, 0, 0)
			binary.LittleEndian.PutUint16(hdr[70:], tt.datatype)
			binary.LittleEndian.PutUint16(hdr[72:], tt.bitpix)

			// enough payload for every case that reaches the data read
			payload := make([]byte, 2*2*2*8)
			r := bytes.NewReader(append(hdr, payload...))

			require.NotPanics(t, func() {
				_, err := nifti.Read(r)
				require.ErrorIs(t, err, models.ErrUnsupportedFormat)
			})
		})
	}
}

func TestSaveAndLoadGzip(t *testing.T) {
	vol, err := models.NewVolume([]float64{0, 1.5, -2, 4, 8, 16}, [3]int{3, 2, 1}, r3.Vec{X: 1, Y: 0.75, Z: 2.5})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "brain.nii.gz")

	require.NoError(t, nifti.Save(path, vol, vol.Data))

	loaded, err := nifti.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "brain.nii.gz", loaded.Name)
	assert.Equal(t, vol.Shape, loaded.Shape)
	assert.Equal(t, vol.Spacing, loaded.Spacing)
	assert.Equal(t, "float32", loaded.DType)
	assert.Equal(t, vol.Data, loaded.Data)
	assert.Equal(t, vol.Fingerprint, loaded.Fingerprint)
}

func TestWriteShapeMismatch(t *testing.T) {
	vol, err := models.NewVolume(make([]float64, 8), [3]int{2, 2, 2}, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	err = nifti.Write(&bytes.Buffer{}, vol, []float64{1})
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

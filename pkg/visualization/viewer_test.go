package visualization

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"volmesh/internal/models"
)

// createTestData fills a 2x3x4 volume with i + 10j + 100k
func createTestData() ([]float64, [3]int) {
	shape := [3]int{2, 3, 4}
	data := make([]float64, 24)
	for k := 0; k < 4; k++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 2; i++ {
				data[k*6+j*2+i] = float64(i + 10*j + 100*k)
			}
		}
	}
	return data, shape
}

func slice2D(rows [][]float64) Slice {
	s := NewSlice(len(rows), len(rows[0]))
	for r, row := range rows {
		copy(s.Data[r*s.Cols:], row)
	}
	return s
}

func TestRot90(t *testing.T) {
	raw := slice2D([][]float64{{1, 2, 3}, {4, 5, 6}})

	assert.Equal(t, slice2D([][]float64{{3, 6}, {2, 5}, {1, 4}}), raw.Rot90(1))
	assert.Equal(t, slice2D([][]float64{{4, 1}, {5, 2}, {6, 3}}), raw.Rot90(-1))
	assert.Equal(t, slice2D([][]float64{{6, 5, 4}, {3, 2, 1}}), raw.Rot90(2))
	assert.Equal(t, raw, raw.Rot90(4))
	assert.Equal(t, raw.Rot90(-1), raw.Rot90(3))
}

func TestOrientIsPure(t *testing.T) {
	raw := slice2D([][]float64{{1, 2, 3}, {4, 5, 6}})
	before := slice2D([][]float64{{1, 2, 3}, {4, 5, 6}})

	for _, plane := range Planes {
		_, err := Orient(raw, plane)
		require.NoError(t, err)
		assert.Equal(t, before, raw, "plane %s modified its input", plane)
	}

	_, err := Orient(raw, "oblique")
	require.ErrorIs(t, err, models.ErrInvalidPlane)
}

func TestExtractSlice(t *testing.T) {
	data, shape := createTestData()
	viewer := NewViewer(data, shape)

	tests := []struct {
		plane Plane
		index int
		want  [][]float64
	}{
		{PlaneAxial, 1, [][]float64{{121, 120}, {111, 110}, {101, 100}}},
		{PlaneCoronal, 2, [][]float64{{320, 321}, {220, 221}, {120, 121}, {20, 21}}},
		{PlaneSagittal, 1, [][]float64{{321, 311, 301}, {221, 211, 201}, {121, 111, 101}, {21, 11, 1}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.plane), func(t *testing.T) {
			got, err := viewer.ExtractSlice(tt.plane, tt.index)
			require.NoError(t, err)
			assert.Equal(t, slice2D(tt.want), got)
		})
	}
}

func TestRawSliceShapes(t *testing.T) {
	data, shape := createTestData()
	viewer := NewViewer(data, shape)

	axial, err := viewer.RawSlice(PlaneAxial, 0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 3}, [2]int{axial.Rows, axial.Cols})

	coronal, err := viewer.RawSlice(PlaneCoronal, 0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 4}, [2]int{coronal.Rows, coronal.Cols})

	sagittal, err := viewer.RawSlice(PlaneSagittal, 0)
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 4}, [2]int{sagittal.Rows, sagittal.Cols})
}

func TestExtractSliceErrors(t *testing.T) {
	data, shape := createTestData()
	viewer := NewViewer(data, shape)

	_, err := viewer.ExtractSlice(PlaneAxial, 4)
	require.ErrorIs(t, err, models.ErrIndexOutOfRange)

	_, err = viewer.ExtractSlice(PlaneSagittal, -1)
	require.ErrorIs(t, err, models.ErrIndexOutOfRange)

	_, err = viewer.ExtractSlice("x", 0)
	require.ErrorIs(t, err, models.ErrInvalidPlane)

	_, err = ParsePlane("transverse")
	require.ErrorIs(t, err, models.ErrInvalidPlane)
}

func TestSliceCount(t *testing.T) {
	data, shape := createTestData()
	viewer := NewViewer(data, shape)

	for plane, want := range map[Plane]int{PlaneSagittal: 2, PlaneCoronal: 3, PlaneAxial: 4} {
		got, err := viewer.SliceCount(plane)
		require.NoError(t, err)
		assert.Equal(t, want, got, "plane %s", plane)
	}
}

func TestToGray16(t *testing.T) {
	img := ToGray16(slice2D([][]float64{{0, 5}, {10, 10}}))

	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(32768), img.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(0, 1).Y)

	flat := ToGray16(slice2D([][]float64{{3, 3}}))
	assert.Equal(t, uint16(0), flat.Gray16At(1, 0).Y)
}

func TestSaveSliceSequence(t *testing.T) {
	data, shape := createTestData()
	viewer := NewViewer(data, shape)
	dir := t.TempDir()

	require.NoError(t, viewer.SaveSliceSequence(PlaneCoronal, dir, FormatTIFF))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	f, err := os.Open(filepath.Join(dir, "slice_coronal_000.tif"))
	require.NoError(t, err)
	defer f.Close()

	img, err := tiff.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 4), img.Bounds())
}

func TestSaveImageJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slice.jpg")
	img := ToGray16(slice2D([][]float64{{0, 1}, {2, 3}}))

	require.NoError(t, SaveImage(img, path, FormatJPEG))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("tif")
	require.NoError(t, err)
	assert.Equal(t, FormatTIFF, f)

	_, err = ParseFormat("png")
	require.ErrorIs(t, err, models.ErrInvalidParameter)
}

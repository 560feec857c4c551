package sasfile

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defineEditor/sas7bdat/internal/sasfile/sasfiletest"
)

func TestReadHeader(t *testing.T) {
	f := sampleFile()
	f.Release = "9.0401M6"
	b, err := f.Bytes()
	require.NoError(t, err)

	h, err := ReadHeader(bytes.NewReader(b))
	require.NoError(t, err)
	assert.True(t, h.U64)
	assert.Equal(t, "DM", h.Name)
	assert.Equal(t, "DATA", h.FileType)
	assert.Equal(t, "unix", h.Platform)
	assert.Equal(t, 8192, h.HeaderLength)
	assert.Equal(t, sasfiletest.DefaultPageLength, h.PageLength)
	assert.Equal(t, "9.0401M6", h.Release)
	assert.Equal(t, "X64_7PRO", h.ServerType)
	assert.Equal(t, "Linux", h.OSName)
	assert.Equal(t, created.Unix(), h.CreatedUnix())
	assert.Equal(t, (len(b)-h.HeaderLength)/h.PageLength, h.PageCount)
}

func TestFormatVersion(t *testing.T) {
	cases := map[string]int{
		"9.0401M6": 9,
		"10.1":     10,
		"V9":       0,
		"":         0,
	}
	for release, want := range cases {
		h := &Header{Release: release}
		assert.Equal(t, want, h.FormatVersion(), release)
	}
}

func TestSASToUnix(t *testing.T) {
	assert.Equal(t, int64(-sasEpochOffset), sasToUnix(0))
	assert.Equal(t, int64(0), sasToUnix(sasEpochOffset))
	assert.Equal(t, int64(0), sasToUnix(math.NaN()))
}

package compression_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	c "github.com/gofatfs/fatfs/testing/fatimage/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRLE8Basic(t *testing.T) {
	cases := map[string]struct {
		input    []byte
		expected []byte
	}{
		"empty":              {[]byte{}, nil},
		"run with two only":  {[]byte{4, 4}, []byte{4, 4, 0}},
		"no runs":            {[]byte{0, 1, 2, 3, 4}, []byte{0, 1, 2, 3, 4}},
		"two at end":         {[]byte{6, 1, 3, 0, 0}, []byte{6, 1, 3, 0, 0, 0}},
		"three at end":       {[]byte{6, 1, 0, 0, 0}, []byte{6, 1, 0, 0, 1}},
		"short run":          {[]byte{9, 5, 5, 5, 5, 5, 3, 7}, []byte{9, 5, 5, 3, 3, 7}},
		"adjacent runs":      {[]byte{9, 5, 5, 5, 5, 5, 5, 3, 3, 3, 3, 7, 2, 6}, []byte{9, 5, 5, 4, 3, 3, 2, 7, 2, 6}},
		"single long run":    {bytes.Repeat([]byte{5}, 1024), []byte{5, 5, 255, 5, 5, 255, 5, 5, 255, 5, 5, 251}},
		"run of exactly 257": {bytes.Repeat([]byte{8}, 257), []byte{8, 8, 255}},
		"run of 258":         {bytes.Repeat([]byte{8}, 258), []byte{8, 8, 255, 8}},
		"run of 259":         {bytes.Repeat([]byte{8}, 259), []byte{8, 8, 255, 8, 8, 0}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			n, err := c.CompressRLE8(bytes.NewReader(tc.input), &out)
			require.NoError(t, err)
			assert.EqualValues(t, len(tc.expected), n)
			assert.Equal(t, tc.expected, out.Bytes())
		})
	}
}

func TestRLE8RoundTrip(t *testing.T) {
	randomData := make([]byte, 1852)
	rand.Read(randomData)

	cases := map[string][]byte{
		"completely random":  randomData,
		"entirely nulls":     make([]byte, 571),
		"entirely non-null":  bytes.Repeat([]byte{182}, 934),
		"empty":               nil,
	}

	for name, originalData := range cases {
		t.Run(name, func(t *testing.T) {
			var compressed bytes.Buffer
			n, err := c.CompressRLE8(bytes.NewReader(originalData), &compressed)
			require.NoError(t, err)
			t.Logf("compressed %d to %d", len(originalData), n)

			var decompressed bytes.Buffer
			n, err = c.DecompressRLE8(bytes.NewReader(compressed.Bytes()), &decompressed)
			require.NoError(t, err)
			assert.EqualValues(t, len(originalData), n)
			assert.Equal(t, originalData, decompressed.Bytes())
		})
	}
}

func TestRLE8DecompressMissingRepeatCount(t *testing.T) {
	data := []byte{9, 1, 4, 4}
	var decompressed bytes.Buffer

	_, err := c.DecompressRLE8(bytes.NewReader(data), &decompressed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

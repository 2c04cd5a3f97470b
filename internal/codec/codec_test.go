package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	blocks := []Block{
		{Kind: KindText, Text: "loves climbing"},
		{Kind: KindResourceLink, URI: "https://example.com", Title: "Example"},
	}

	for _, compress := range []bool{false, true} {
		encoded, err := Encode(blocks, compress)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, blocks, decoded)
	}
}

func TestEncodeUsesCompressionAboveThreshold(t *testing.T) {
	big := []Block{{Kind: KindText, Text: strings.Repeat("x", 500)}}

	uncompressed, err := Encode(big, false)
	require.NoError(t, err)
	compressed, err := Encode(big, true)
	require.NoError(t, err)

	assert.Equal(t, flagRaw, uncompressed[0])
	assert.Equal(t, flagZstd, compressed[0])

	decoded, err := Decode(compressed)
	require.NoError(t, err)
	assert.Equal(t, big, decoded)
}

func TestEncodeSkipsCompressionBelowThreshold(t *testing.T) {
	small := []Block{{Kind: KindText, Text: "hi"}}
	encoded, err := Encode(small, true)
	require.NoError(t, err)
	assert.Equal(t, flagRaw, encoded[0])
}

func TestBlockEqualIgnoresCaptionsOnResources(t *testing.T) {
	a := Block{Kind: KindResource, Data: "YWJj", MimeType: "text/plain", Title: "A"}
	b := Block{Kind: KindResource, Data: "YWJj", MimeType: "text/plain", Title: "B"}
	assert.True(t, a.Equal(b))
}

func TestDedupAppendPreservesOrderAndSkipsDuplicates(t *testing.T) {
	base := []Block{{Kind: KindText, Text: "a"}, {Kind: KindText, Text: "b"}}
	incoming := []Block{{Kind: KindText, Text: "b"}, {Kind: KindText, Text: "c"}}

	merged := DedupAppend(base, incoming)
	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].Text)
	assert.Equal(t, "b", merged[1].Text)
	assert.Equal(t, "c", merged[2].Text)
}

func TestRemoveEqual(t *testing.T) {
	base := []Block{{Kind: KindText, Text: "a"}, {Kind: KindText, Text: "b"}, {Kind: KindText, Text: "c"}}
	removed := RemoveEqual(base, []Block{{Kind: KindText, Text: "b"}})
	require.Len(t, removed, 2)
	assert.Equal(t, "a", removed[0].Text)
	assert.Equal(t, "c", removed[1].Text)
}

func TestCanonicalEqual(t *testing.T) {
	blocks := []Block{{Kind: KindText, Text: "same"}}
	a, err := Encode(blocks, false)
	require.NoError(t, err)
	b, err := Encode(blocks, true)
	require.NoError(t, err)

	equal, err := CanonicalEqual(a, b)
	require.NoError(t, err)
	assert.True(t, equal)
}

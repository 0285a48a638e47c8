package parsers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/Beastly713/parsefuzz/pkg/classify"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byID(t *testing.T, id string) registry.ParseFunc {
	t.Helper()
	fn, ok := byIDOK(id)
	if !ok {
		t.Fatalf("no parser %q", id)
	}
	return fn
}

func TestSeedsParse(t *testing.T) {
	seeds, err := Seeds()
	require.NoError(t, err)

	for _, p := range All() {
		t.Run(p.ID, func(t *testing.T) {
			doc, ok := seeds[p.ID]
			require.True(t, ok, "missing seed")
			_, err := p.Parse(doc, registry.Options{Quiet: true})
			assert.NoError(t, err)
		})
	}
}

func TestKnownRejections(t *testing.T) {
	cases := map[string]string{
		"cbor":        "\x1c",
		"cbor-diag":   "\x1c",
		"csv":         "a,\"b\n",
		"gzip":        "not gzip at all",
		"json":        "{",
		"mangle":      "foo(",
		"msgp":        Latin1([]byte{0xd9, 0x05, 'a', 'b'}),
		"msgpack":     Latin1([]byte{0xc1}),
		"png":         "not a png",
		"reedsolomon": "abc",
		"report":      "junk",
		"toml":        "a = ",
		"xml":         "<a>",
		"yaml":        "a: [",
	}
	for id, text := range cases {
		t.Run(id, func(t *testing.T) {
			_, err := byID(t, id)(text, registry.Options{})
			require.Error(t, err)
			assert.Equal(t, fault.KindMalformedInput, fault.KindOfError(err), err.Error())
		})
	}
}

// withIDAT returns the PNG in doc with its first IDAT payload passed through
// mutate and the chunk CRC recomputed, so decoding gets as far as the zlib
// stream.
func withIDAT(t *testing.T, doc string, mutate func([]byte)) string {
	t.Helper()
	b := octets(doc)
	i := bytes.Index(b, []byte("IDAT"))
	require.Greater(t, i, 8)
	n := int(binary.BigEndian.Uint32(b[i-4:]))
	require.GreaterOrEqual(t, n, 6)
	mutate(b[i+4 : i+4+n])
	binary.BigEndian.PutUint32(b[i+4+n:], crc32.ChecksumIEEE(b[i:i+4+n]))
	return Latin1(b)
}

func TestCorruptBodies(t *testing.T) {
	seeds, err := Seeds()
	require.NoError(t, err)
	rules := classify.Default("mangle-eval")
	gzipHeader := []byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff}

	cases := []struct {
		name   string
		parser string
		text   string
		is     func(error) bool
	}{
		{"zlib header", "png", withIDAT(t, seeds["png"], func(d []byte) {
			d[0], d[1] = '0', '0'
		}), func(err error) bool { return errors.Is(err, zlib.ErrHeader) }},
		{"zlib dictionary", "png", withIDAT(t, seeds["png"], func(d []byte) {
			d[0], d[1] = 0x78, 0x20
			copy(d[2:6], []byte{0, 0, 0, 0})
		}), func(err error) bool { return errors.Is(err, zlib.ErrDictionary) }},
		{"deflate block", "png", withIDAT(t, seeds["png"], func(d []byte) {
			d[2] = 0xff
		}), isCorrupt},
		{"deflate block", "gzip", Latin1(append(gzipHeader, 0xff, 0xff)), isCorrupt},
		{"truncated array", "cbor", Latin1([]byte{0x82, 0x01}), nil},
		{"truncated map", "cbor-diag", Latin1([]byte{0xa1, 0x01}), nil},
		{"truncated array", "msgp", Latin1([]byte{0x92, 0x01}), nil},
		{"truncated map", "msgpack", Latin1([]byte{0x81, 0xa1}), nil},
	}
	for _, tc := range cases {
		t.Run(tc.parser+"/"+tc.name, func(t *testing.T) {
			_, err := byID(t, tc.parser)(tc.text, registry.Options{})
			require.Error(t, err)
			if tc.is != nil {
				assert.True(t, tc.is(err), "unexpected error %v", err)
			}
			assert.Equal(t, classify.Benign, rules.Classify(fault.FromError(err)), err.Error())
		})
	}
}

func isCorrupt(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.As(err, &corrupt)
}

func TestNarrowLibraryMessages(t *testing.T) {
	assert.True(t, hasPrefix(errors.New("msgpack: unknown code c1 decoding interface{}"), msgpackRejections))
	assert.False(t, hasPrefix(errors.New("msgpack: Decode(nil)"), msgpackRejections))

	assert.True(t, hasPrefix(errors.New("yaml: line 3: did not find expected key"), yamlRejections))
	assert.False(t, hasPrefix(errors.New("yaml: internal error"), yamlRejections))
}

func TestEmptyInput(t *testing.T) {
	rules := classify.Default("mangle-eval")

	v, err := byID(t, "xml")("", registry.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	// Binary decoders return bare io errors on empty input; the default
	// allowlist absorbs them.
	for _, id := range []string{"cbor", "gzip", "msgpack"} {
		_, err := byID(t, id)("", registry.Options{})
		require.Error(t, err, id)
		assert.Equal(t, classify.Benign, rules.Classify(fault.FromError(err)), "%s: %v", id, err)
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.True(t, reg.Sealed())
	assert.Equal(t, len(All())-len(Unsafe), reg.Len())
	assert.Equal(t, -1, reg.IndexOf("mangle-eval"))

	_, err = reg.Parse("mangle-eval", "a(1).", registry.Options{})
	assert.ErrorIs(t, err, fault.ErrLibraryUnavailable)

	for id, reason := range Unsafe {
		_, ok := byIDOK(id)
		assert.True(t, ok, "unsafe entry %q is not a parser", id)
		assert.NotEmpty(t, reason)
	}
}

func byIDOK(id string) (registry.ParseFunc, bool) {
	for _, p := range All() {
		if p.ID == id {
			return p.Parse, true
		}
	}
	return nil, false
}

func TestLatin1RoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.Equal(t, all, octets(Latin1(all)))
	assert.Equal(t, []byte{'a', 0x1a, 'b'}, octets("a世b"))
}

func TestPNGPayload(t *testing.T) {
	seeds, err := Seeds()
	require.NoError(t, err)

	v, err := parsePNG(seeds["png"], registry.Options{})
	require.NoError(t, err)
	pic := v.(*Picture)
	assert.Equal(t, 8, pic.Bounds.Dx())
	assert.Equal(t, []byte("hidden"), pic.Payload)
}

func TestReedSolomonParity(t *testing.T) {
	block, err := EncodeShards([]byte("erasure coded seed"))
	require.NoError(t, err)

	v, err := parseReedSolomon(Latin1(block), registry.Options{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(v.([]byte), []byte("erasure coded seed")))

	block[0] ^= 0xff
	_, err = parseReedSolomon(Latin1(block), registry.Options{})
	assert.ErrorIs(t, err, errParityMismatch)
}

func TestGzipInflateLimit(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(make([]byte, maxInflated+10))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = parseGzip(Latin1(buf.Bytes()), registry.Options{})
	assert.ErrorIs(t, err, errInflateLimit)
}

package parsers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/klauspost/reedsolomon"
)

// maxInflated caps gzip output so a bomb is rejected instead of exhausting
// memory.
const maxInflated = 1 << 20

var errInflateLimit = fmt.Errorf("gzip: inflated size exceeds %d bytes", maxInflated)

func parseGzip(text string, _ registry.Options) (any, error) {
	r, err := gzip.NewReader(bytes.NewReader(octets(text)))
	if err != nil {
		return nil, gzipError(err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return nil, gzipError(err)
	}
	if len(out) > maxInflated {
		return nil, fault.Reject("gzip", errInflateLimit)
	}
	return out, nil
}

func gzipError(err error) error {
	var corrupt flate.CorruptInputError
	if errors.Is(err, gzip.ErrHeader) || errors.Is(err, gzip.ErrChecksum) || errors.As(err, &corrupt) {
		return fault.Reject("gzip", err)
	}
	return err
}

// Shard geometry of the reedsolomon parser: the input is cut into
// rsData+rsParity equal shards.
const (
	rsData   = 4
	rsParity = 2
)

var errShardGeometry = fmt.Errorf("reedsolomon: input length must be a positive multiple of %d", rsData+rsParity)

var errParityMismatch = errors.New("reedsolomon: parity does not match data shards")

var rsEncoder reedsolomon.Encoder

func init() {
	var err error
	if rsEncoder, err = reedsolomon.New(rsData, rsParity); err != nil {
		panic(err)
	}
}

// parseReedSolomon verifies an erasure coded block and returns the joined
// data shards.
func parseReedSolomon(text string, _ registry.Options) (any, error) {
	data := octets(text)
	total := rsData + rsParity
	if len(data) == 0 || len(data)%total != 0 {
		return nil, fault.Reject("reedsolomon", errShardGeometry)
	}

	size := len(data) / total
	shards := make([][]byte, total)
	for i := range shards {
		shards[i] = data[i*size : (i+1)*size]
	}

	ok, err := rsEncoder.Verify(shards)
	if err != nil {
		if errors.Is(err, reedsolomon.ErrShardNoData) || errors.Is(err, reedsolomon.ErrShardSize) || errors.Is(err, reedsolomon.ErrTooFewShards) {
			return nil, fault.Reject("reedsolomon", err)
		}
		return nil, err
	}
	if !ok {
		return nil, fault.Reject("reedsolomon", errParityMismatch)
	}

	var buf bytes.Buffer
	for i := 0; i < rsData; i++ {
		buf.Write(shards[i])
	}
	return buf.Bytes(), nil
}

// EncodeShards lays data out the way the reedsolomon parser expects it.
func EncodeShards(data []byte) ([]byte, error) {
	shards, err := rsEncoder.Split(data)
	if err != nil {
		return nil, err
	}
	if err := rsEncoder.Encode(shards); err != nil {
		return nil, err
	}
	return bytes.Join(shards, nil), nil
}

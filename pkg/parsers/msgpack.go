package parsers

import (
	"bytes"
	"errors"
	"strings"

	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/Beastly713/parsefuzz/pkg/registry"
	"github.com/tinylib/msgp/msgp"
	"github.com/vmihailenco/msgpack/v5"
)

// msgpackRejections are the messages msgpack builds when the encoded bytes
// are at fault. The library has no error types for them.
var msgpackRejections = []string{
	"msgpack: unknown code",
	"msgpack: invalid code",
	"msgpack: unexpected code",
	"msgpack: unknown ext",
	"msgpack: unregistered ext",
	"msgpack: invalid ext",
	"msgpack: exceeded max depth",
}

// hasPrefix reports whether err's message starts with one of families.
func hasPrefix(err error, families []string) bool {
	msg := err.Error()
	for _, f := range families {
		if strings.HasPrefix(msg, f) {
			return true
		}
	}
	return false
}

func parseMsgpack(text string, _ registry.Options) (any, error) {
	var v any
	if err := msgpack.Unmarshal(octets(text), &v); err != nil {
		if hasPrefix(err, msgpackRejections) {
			return nil, fault.Reject("msgpack", err)
		}
		return nil, err
	}
	return v, nil
}

// parseMsgp transcodes one MessagePack object to JSON and returns it.
func parseMsgp(text string, _ registry.Options) (any, error) {
	var buf bytes.Buffer
	if _, err := msgp.UnmarshalAsJSON(&buf, octets(text)); err != nil {
		var merr msgp.Error
		if errors.As(err, &merr) {
			return nil, fault.Reject("msgp", err)
		}
		return nil, err
	}
	return buf.String(), nil
}

//go:build gofuzz

package harness

var fuzzer *Harness

func init() {
	var err error
	if fuzzer, err = NewDefault(); err != nil {
		panic(err)
	}
}

// Fuzz is the go-fuzz and libFuzzer entry point: 1 for accepted input, -1
// for a benign rejection. Defects panic.
func Fuzz(data []byte) int {
	if fuzzer.Process(data) == Rejected {
		return -1
	}
	return 1
}

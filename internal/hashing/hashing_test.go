package hashing

import (
	"strings"
	"testing"
)

func TestEmptyStreamHash(t *testing.T) {
	sum, err := Stream(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := sum.Hex(); got != want {
		t.Fatalf("expected empty-stream sha256 %s, got %s", want, got)
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	sum := Bytes([]byte("the quick brown fox"))
	hex := sum.Hex()
	got, err := FromHex(hex)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(sum) {
		t.Fatalf("round trip mismatch: got %v want %v", got, sum)
	}
}

func TestFromHexInvalidLength(t *testing.T) {
	if _, err := FromHex("abcd"); err == nil {
		t.Fatal("expected error for too-short hex")
	}
}

func TestHasherStreaming(t *testing.T) {
	h := NewHasher()
	_, _ = h.Write([]byte("the quick "))
	_, _ = h.Write([]byte("brown fox"))
	streamed := h.Sum()

	direct := Bytes([]byte("the quick brown fox"))
	if !streamed.Equal(direct) {
		t.Fatalf("streamed hash does not match direct hash")
	}
}

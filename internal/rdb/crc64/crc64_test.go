package crc64

import "testing"

func TestCRC64(t *testing.T) {
	got := New()
	got.Write([]byte("123456789"))
	if got.Sum64() != uint64(16845390139448941002) {
		t.Errorf("expected 16845390139448941002, got %d", got.Sum64())
	}
}

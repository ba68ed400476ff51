package hash

import (
	"testing"
)

func TestSHA256Hex(t *testing.T) {
	// Known SHA256 of "hello"
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	got := SHA256Hex("hello")
	if got != want {
		t.Errorf("SHA256Hex(\"hello\") = %s, want %s", got, want)
	}
}

func TestSHA256Hex_Empty(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	got := SHA256Hex("")
	if got != want {
		t.Errorf("SHA256Hex(\"\") = %s, want %s", got, want)
	}
}

func TestShortHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"ipv4", "192.168.1.1"},
		{"ipv6", "2001:db8::1"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShortHash(tt.input)
			if len(got) != 12 {
				t.Fatalf("ShortHash(%q) length = %d, want 12", tt.input, len(got))
			}
			if got != SHA256Hex(tt.input)[:12] {
				t.Errorf("ShortHash(%q) = %s, want prefix of SHA256Hex", tt.input, got)
			}
		})
	}
}

func TestIteratedSHA256(t *testing.T) {
	// 1 iteration should equal a single SHA256
	oneIter := IteratedSHA256("test", 1)
	single := SHA256Hex("test")
	if oneIter != single {
		t.Errorf("IteratedSHA256(\"test\", 1) = %s, want %s", oneIter, single)
	}

	multiIter := IteratedSHA256("test", 5000)
	if multiIter == single {
		t.Error("5000 iterations should differ from single iteration")
	}

	if multiIter != IteratedSHA256("test", 5000) {
		t.Error("IteratedSHA256 should be deterministic")
	}
}

func TestHashIP(t *testing.T) {
	ip := "192.168.1.1"
	salt := "random-salt-value"
	hash := HashIP(ip, salt)

	if len(hash) != 64 {
		t.Errorf("HashIP length = %d, want 64", len(hash))
	}

	if hash == HashIP(ip, "different-salt") {
		t.Error("different salts should produce different hashes")
	}

	if hash == HashIP("10.0.0.1", salt) {
		t.Error("different IPs should produce different hashes")
	}
}

package bytesize

import "testing"

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"16KiB", 16 * KiB, false},
		{"16Ki", 16 * KiB, false},
		{"200Mi", 200 * MiB, false},
		{"1gib", GiB, false},
		{"1KB", 1000, false},
		{"2M", 2 * MB, false},
		{"1.5Ki", 1536, false},
		{" 64 MiB ", 64 * MiB, false},
		{"", 0, true},
		{"MiB", 0, true},
		{"12XB", 0, true},
		{"1.2.3K", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseByteSize(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseByteSize(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{512, "512B"},
		{16 * KiB, "16KiB"},
		{1536, "1.50KiB"},
		{200 * MiB, "200MiB"},
		{2 * GiB, "2GiB"},
	}
	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
	}
}

func TestByteSizeTextRoundTrip(t *testing.T) {
	text, err := (64 * MiB).MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var b ByteSize
	if err := b.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q): %v", text, err)
	}
	if b != 64*MiB {
		t.Errorf("round trip = %d, want %d", b, 64*MiB)
	}
}

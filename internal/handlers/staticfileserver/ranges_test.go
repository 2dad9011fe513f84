package staticfileserver

import "testing"

func TestParseRangeHeader(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		size    int64
		want    *byteRange
		wantErr bool
	}{
		{name: "closed range", header: "bytes=0-10", size: 48, want: &byteRange{0, 10}},
		{name: "single byte", header: "bytes=5-5", size: 48, want: &byteRange{5, 5}},
		{name: "last byte", header: "bytes=47-47", size: 48, want: &byteRange{47, 47}},
		{name: "open range", header: "bytes=40-", size: 48, want: &byteRange{40, 47}},
		{name: "end clamped", header: "bytes=40-9999", size: 48, want: &byteRange{40, 47}},
		{name: "suffix", header: "bytes=-8", size: 48, want: &byteRange{40, 47}},
		{name: "suffix covers whole resource", header: "bytes=-48", size: 48, want: &byteRange{0, 47}},
		{name: "oversized suffix", header: "bytes=-9999", size: 48, want: &byteRange{0, 47}},
		{name: "full range explicit", header: "bytes=0-47", size: 48, want: &byteRange{0, 47}},

		{name: "start at size", header: "bytes=48-", size: 48, wantErr: true},
		{name: "start past size", header: "bytes=100-200", size: 48, wantErr: true},
		{name: "inverted", header: "bytes=10-5", size: 48, wantErr: true},
		{name: "zero suffix", header: "bytes=-0", size: 48, wantErr: true},
		{name: "multi-range", header: "bytes=0-4,10-14", size: 48, wantErr: true},
		{name: "missing unit", header: "0-10", size: 48, wantErr: true},
		{name: "wrong unit", header: "items=0-10", size: 48, wantErr: true},
		{name: "no dash", header: "bytes=10", size: 48, wantErr: true},
		{name: "bare dash", header: "bytes=-", size: 48, wantErr: true},
		{name: "signed start", header: "bytes=+5-10", size: 48, wantErr: true},
		{name: "non-numeric", header: "bytes=a-b", size: 48, wantErr: true},
		{name: "empty file closed", header: "bytes=0-0", size: 0, wantErr: true},
		{name: "empty file open", header: "bytes=0-", size: 0, wantErr: true},
		{name: "empty file suffix", header: "bytes=-1", size: 0, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRangeHeader(tc.header, tc.size)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseRangeHeader(%q, %d) = %+v, want error", tc.header, tc.size, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRangeHeader(%q, %d) failed: %v", tc.header, tc.size, err)
			}
			if *got != *tc.want {
				t.Errorf("parseRangeHeader(%q, %d) = %+v, want %+v", tc.header, tc.size, got, tc.want)
			}
		})
	}
}

func TestByteRangeLength(t *testing.T) {
	if got := (byteRange{0, 10}).length(); got != 11 {
		t.Errorf("length of 0-10 = %d, want 11", got)
	}
	if got := (byteRange{5, 5}).length(); got != 1 {
		t.Errorf("length of 5-5 = %d, want 1", got)
	}
}

func TestByteRangeContentRange(t *testing.T) {
	if got := (byteRange{0, 10}).contentRange(48); got != "bytes 0-10/48" {
		t.Errorf("contentRange = %q", got)
	}
}

func TestByteRangeClampToSize(t *testing.T) {
	if _, ok := (byteRange{50, 60}).clampToSize(10); ok {
		t.Error("start past new size must not be satisfiable")
	}
	if _, ok := (byteRange{0, 10}).clampToSize(0); ok {
		t.Error("zero new size must not be satisfiable")
	}
	clamped, ok := (byteRange{0, 49}).clampToSize(10)
	if !ok || clamped != (byteRange{0, 9}) {
		t.Errorf("clampToSize = %+v (%v), want 0-9", clamped, ok)
	}
	clamped, ok = (byteRange{2, 4}).clampToSize(10)
	if !ok || clamped != (byteRange{2, 4}) {
		t.Errorf("range within new size must be unchanged, got %+v (%v)", clamped, ok)
	}
}

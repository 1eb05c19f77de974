package lzc

import "testing"

func TestValidNames(t *testing.T) {
	tests := []struct {
		name         string
		fs, snap, bm bool
	}{
		{"pool", true, false, false},
		{"pool/fs", true, false, false},
		{"pool/fs/sub", true, false, false},
		{"pool/f-s_1.2:3 x", true, false, false},
		{"pool/fs@snap", false, true, false},
		{"pool@snap", false, true, false},
		{"pool/fs#mark", false, false, true},
		{"", false, false, false},
		{"/leading", false, false, false},
		{"pool/", false, false, false},
		{"pool//fs", false, false, false},
		{"pool/fs@", false, false, false},
		{"pool/fs@a@b", false, false, false},
		{"pool/fs#a#b", false, false, false},
		{"pool/fs@snap#mark", false, false, false},
		{"pool/fs*", false, false, false},
		{"pööl/fs", false, false, false},
		{"pool/fs\t", false, false, false},
	}
	for _, test := range tests {
		if got := ValidFilesystemName(test.name); got != test.fs {
			t.Errorf("ValidFilesystemName(%q) = %v, want %v", test.name, got, test.fs)
		}
		if got := ValidSnapshotName(test.name); got != test.snap {
			t.Errorf("ValidSnapshotName(%q) = %v, want %v", test.name, got, test.snap)
		}
		if got := ValidBookmarkName(test.name); got != test.bm {
			t.Errorf("ValidBookmarkName(%q) = %v, want %v", test.name, got, test.bm)
		}
	}
}

func TestNameParts(t *testing.T) {
	tests := []struct {
		name, pool, fs string
	}{
		{"pool", "pool", "pool"},
		{"pool/fs", "pool", "pool/fs"},
		{"pool/fs@snap", "pool", "pool/fs"},
		{"pool/fs#mark", "pool", "pool/fs"},
		{"pool@snap", "pool", "pool"},
		{"", "", ""},
	}
	for _, test := range tests {
		if got := PoolName(test.name); got != test.pool {
			t.Errorf("PoolName(%q) = %q, want %q", test.name, got, test.pool)
		}
		if got := FilesystemName(test.name); got != test.fs {
			t.Errorf("FilesystemName(%q) = %q, want %q", test.name, got, test.fs)
		}
	}
}

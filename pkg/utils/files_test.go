package utils

import (
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		in, ext, want string
	}{
		{"prog.c", ".bin", "prog.bin"},
		{"dir/prog.c", ".asm", "dir/prog.asm"},
		{"noext", ".bin", "noext.bin"},
		{"a.b/prog.asm", ".bin", "a.b/prog.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			be.Equal(t, DefaultOutputPath(tt.in, tt.ext), tt.want)
		})
	}
}

func TestIsSource(t *testing.T) {
	be.True(t, IsSource("x.c"))
	be.True(t, IsSource("X.C"))
	be.True(t, !IsSource("x.bin"))
	be.True(t, !IsSource("c"))
}

func TestGetPathInfo(t *testing.T) {
	full, dir, err := GetPathInfo("a/../b/prog.c")
	be.Err(t, err, nil)
	be.True(t, filepath.IsAbs(full))
	be.Equal(t, filepath.Base(full), "prog.c")
	be.Equal(t, filepath.Base(dir), "b")
}

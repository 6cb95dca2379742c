package asm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"stackcc/pkg/vm"
)

func TestBytecodeLayout(t *testing.T) {
	p, err := Assemble("PUSH 1\nMAIN\nPUSH -2\nHLT\n")
	be.Err(t, err, nil)

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	be.Err(t, err, nil)
	be.Equal(t, n, int64(16+4*5))
	be.Equal(t, buf.Len(), 16+4*5)

	raw := buf.Bytes()
	be.Equal(t, binary.LittleEndian.Uint64(raw[0:8]), uint64(2))
	be.Equal(t, binary.LittleEndian.Uint64(raw[8:16]), uint64(5))
	be.Equal(t, int32(binary.LittleEndian.Uint32(raw[16:20])), vm.OpPUSH)
	be.Equal(t, int32(binary.LittleEndian.Uint32(raw[28:32])), int32(-2))
}

func TestEmptyProgramIsHeaderOnly(t *testing.T) {
	p, err := Assemble("")
	be.Err(t, err, nil)

	var buf bytes.Buffer
	_, err = p.WriteTo(&buf)
	be.Err(t, err, nil)
	be.Equal(t, buf.Bytes(), make([]byte, 16))
}

func TestReadProgramRoundTrip(t *testing.T) {
	p, err := Assemble(": f\nPUSHM [RBX]\nRET\nMAIN\nCALL f\nOUT\nHLT\n")
	be.Err(t, err, nil)

	var buf bytes.Buffer
	_, err = p.WriteTo(&buf)
	be.Err(t, err, nil)

	got, err := ReadProgram(&buf)
	be.Err(t, err, nil)
	be.Equal(t, got.StartIP, p.StartIP)
	be.Equal(t, got.Code, p.Code)
	be.Equal(t, got.Instructions, p.Instructions)
}

func TestReadProgramCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{1, 2, 3}},
		{"count without body", func() []byte {
			b := make([]byte, 16)
			binary.LittleEndian.PutUint64(b[8:], 4)
			return b
		}()},
		{"start beyond code", func() []byte {
			b := make([]byte, 16)
			binary.LittleEndian.PutUint64(b[0:], 9)
			return b
		}()},
		{"operand missing", func() []byte {
			b := make([]byte, 20)
			binary.LittleEndian.PutUint64(b[8:], 1)
			binary.LittleEndian.PutUint32(b[16:], uint32(vm.OpPUSH))
			return b
		}()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadProgram(bytes.NewReader(tc.data))
			be.True(t, errors.Is(err, ErrCorrupt))
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	p, err := Assemble("PUSH 4\nOUT\nHLT\n")
	be.Err(t, err, nil)
	be.Err(t, WriteFile(path, p), nil)

	got, err := ReadFile(path)
	be.Err(t, err, nil)
	be.Equal(t, got.Code, p.Code)

	entries, err := os.ReadDir(dir)
	be.Err(t, err, nil)
	be.Equal(t, len(entries), 1)
}

func TestWriteFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.bin")
	p := &Program{}
	be.True(t, WriteFile(path, p) != nil)
	_, err := os.Stat(path)
	be.True(t, os.IsNotExist(err))
}

func TestListing(t *testing.T) {
	p, err := Assemble(": a\nRET\nMAIN\nPUSHR RAX\nPOPM [RCX]\nJMP a\n")
	be.Err(t, err, nil)
	text, err := p.Listing()
	be.Err(t, err, nil)

	want := []string{
		"; start_ip 1, 7 slots, 4 instructions",
		"0000  RET",
		"MAIN",
		"0001  PUSHR RAX",
		"0003  POPM [RCX]",
		"0005  JMP 0",
	}
	be.Equal(t, strings.Split(strings.TrimSpace(text), "\n"), want)
}

// This file is part of uxncore, a Uxn virtual machine core.
//
// Copyright 2026 The uxncore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package disasm_test

import (
	"strings"
	"testing"

	"github.com/uxncore/uxncore/internal/asm"
	"github.com/uxncore/uxncore/internal/disasm"
)

func TestDisassembleAll_roundTripsAssembledSource(t *testing.T) {
	img, err := asm.AssembleString("LIT 2a LIT 02 ADD BRK")
	if err != nil {
		t.Fatalf("AssembleString: %+v", err)
	}
	var buf strings.Builder
	if err := disasm.DisassembleAll(img, 0x0100, &buf); err != nil {
		t.Fatalf("DisassembleAll: %+v", err)
	}
	want := "0100\tLIT 2a\n0102\tLIT 02\n0104\tADD\n0105\tBRK\n"
	if got := buf.String(); got != want {
		t.Errorf("DisassembleAll =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassemble_modeSuffixes(t *testing.T) {
	img, err := asm.AssembleString("ADD2k STHr DUP2")
	if err != nil {
		t.Fatalf("AssembleString: %+v", err)
	}
	var buf strings.Builder
	if err := disasm.DisassembleAll(img, 0, &buf); err != nil {
		t.Fatalf("DisassembleAll: %+v", err)
	}
	want := "0000\tADD2k\n0001\tSTHr\n0002\tDUP2\n"
	if got := buf.String(); got != want {
		t.Errorf("DisassembleAll =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassemble_keepAndReturnSuffixOrder(t *testing.T) {
	// The canonical suffix order is "k" before "r" (STHkr, not STHrk),
	// matching the reference Uxntal convention.
	img, err := asm.AssembleString("STHkr")
	if err != nil {
		t.Fatalf("AssembleString: %+v", err)
	}
	var buf strings.Builder
	if err := disasm.DisassembleAll(img, 0, &buf); err != nil {
		t.Fatalf("DisassembleAll: %+v", err)
	}
	want := "0000\tSTHkr\n"
	if got := buf.String(); got != want {
		t.Errorf("DisassembleAll = %q, want %q", got, want)
	}
}

func TestDisassemble_immediateOperand(t *testing.T) {
	img, err := asm.AssembleString("JSI 0002")
	if err != nil {
		t.Fatalf("AssembleString: %+v", err)
	}
	var buf strings.Builder
	if err := disasm.DisassembleAll(img, 0, &buf); err != nil {
		t.Fatalf("DisassembleAll: %+v", err)
	}
	want := "0000\tJSI 0002\n"
	if got := buf.String(); got != want {
		t.Errorf("DisassembleAll =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassemble_truncatedOperand(t *testing.T) {
	img := []byte{0x80} // LIT with no operand byte following
	var buf strings.Builder
	next, err := disasm.Disassemble(img, 0, &buf)
	if err != nil {
		t.Fatalf("Disassemble: %+v", err)
	}
	if next != 1 {
		t.Errorf("next = %d, want 1", next)
	}
	if got := buf.String(); got != "LIT ???" {
		t.Errorf("Disassemble = %q, want %q", got, "LIT ???")
	}
}

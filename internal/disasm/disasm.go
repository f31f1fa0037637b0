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

// Package disasm prints a mnemonic listing of a Uxn byte image. Like
// internal/asm, it exists to make test failures and debugging readable,
// not as a product surface of its own.
package disasm

import (
	"fmt"
	"io"

	"github.com/uxncore/uxncore/vm"
)

func operandBytes(op byte) int {
	switch op {
	case 0x20, 0x40, 0x60: // JCI, JMI, JSI
		return 2
	case 0x80, 0xc0: // LIT, LITr
		return 1
	case 0xa0, 0xe0: // LIT2, LIT2r
		return 2
	}
	return 0
}

// Disassemble decodes the instruction in img at offset pc, writes its
// mnemonic and any immediate operand to w, and returns the offset of
// the next instruction.
func Disassemble(img []byte, pc int, w io.Writer) (next int, err error) {
	op := img[pc]
	mnemonic := vm.MnemonicFor(op)
	pc++
	n := operandBytes(op)
	if n == 0 {
		_, err = io.WriteString(w, mnemonic)
		return pc, err
	}
	if pc+n > len(img) {
		_, err = fmt.Fprintf(w, "%s ???", mnemonic)
		return pc, err
	}
	_, err = fmt.Fprintf(w, "%s %x", mnemonic, img[pc:pc+n])
	return pc + n, err
}

// DisassembleAll writes one line per instruction in img to w, each
// prefixed with its address (base+offset into img).
func DisassembleAll(img []byte, base int, w io.Writer) error {
	for pc := 0; pc < len(img); {
		if _, err := fmt.Fprintf(w, "%04x\t", base+pc); err != nil {
			return err
		}
		next, err := Disassemble(img, pc, w)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		pc = next
	}
	return nil
}

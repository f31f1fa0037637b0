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

// Package asm assembles a tiny whitespace-delimited Uxn mnemonic
// language into a raw byte image. It exists only to build test fixtures
// for the vm package, the same role the teacher project's own asm
// package plays for its vm_test.go — it is not meant as a general-purpose
// Uxntal assembler (no labels, no macros).
package asm

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/uxncore/uxncore/vm"
)

// operandWidth reports how many raw bytes follow an opcode as its
// immediate operand: the LIT family carries its literal inline, and
// JCI/JMI/JSI carry a 16-bit target/offset the same way.
func operandWidth(op byte) int {
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

// parseHexBytes decodes tok as exactly n big-endian bytes, requiring
// 2*n hex digits so that e.g. a short operand written "0005" cannot be
// mistaken for the single byte 0x05.
func parseHexBytes(tok string, n int) ([]byte, error) {
	if len(tok) != 2*n {
		return nil, errors.Errorf("expected %d hex digits, got %q", 2*n, tok)
	}
	b, err := hex.DecodeString(tok)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ErrAsm collects up to 10 assembly errors. Assemble returns it (wrapped
// in nothing further) when parsing fails; callers that only care whether
// assembly succeeded can just check err != nil.
type ErrAsm struct {
	Errors []error
}

func (e *ErrAsm) Error() string {
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "\n")
}

// Assemble reads whitespace-separated tokens from r and returns the
// resulting byte image. Each token is either an opcode mnemonic
// (case-insensitive, e.g. "LIT", "ADD2k", "JCI"), in which case the
// opcode byte is emitted, followed for LIT/LIT2/LITr/LIT2r/JCI/JMI/JSI
// by a single hex operand token sized to match (two hex digits for a
// byte operand, four for a short), or a
// bare two-digit hex byte, emitted as raw data. name is used only to
// annotate error messages.
func Assemble(name string, r io.Reader) ([]byte, error) {
	var img []byte
	var errs []error
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	pendingWidth := 0
	for sc.Scan() {
		tok := sc.Text()
		if pendingWidth > 0 {
			b, err := parseHexBytes(tok, pendingWidth)
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "%s: bad literal operand %q", name, tok))
				b = make([]byte, pendingWidth)
			}
			img = append(img, b...)
			pendingWidth = 0
			continue
		}
		if op, ok := vm.OpcodeByte(tok); ok {
			img = append(img, op)
			pendingWidth = operandWidth(op)
			continue
		}
		b, err := parseHexBytes(tok, 1)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "%s: unknown token %q", name, tok))
			continue
		}
		img = append(img, b...)
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, errors.Wrap(err, name))
	}
	if len(errs) > 0 {
		if len(errs) > 10 {
			errs = errs[:10]
		}
		return img, &ErrAsm{Errors: errs}
	}
	return img, nil
}

// AssembleString is a convenience wrapper around Assemble for literal
// test fixtures.
func AssembleString(src string) ([]byte, error) {
	return Assemble("<string>", strings.NewReader(src))
}

// AssembleInto assembles src and copies the result into mem starting at
// offset, panicking if it would overrun mem — a programmer error in a
// test, not a runtime condition. It returns the assembled length.
func AssembleInto(mem []byte, offset int, src string) int {
	img, err := AssembleString(src)
	if err != nil {
		panic(fmt.Sprintf("asm.AssembleInto: %v", err))
	}
	if offset+len(img) > len(mem) {
		panic("asm.AssembleInto: image overruns mem")
	}
	copy(mem[offset:], img)
	return len(img)
}

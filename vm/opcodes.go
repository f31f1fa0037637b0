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

package vm

import "strings"

// Base opcodes. The low 5 bits of every opcode byte select one of these
// 32 operations; bits 5-7 are the short/return/keep mode flags decoded
// by opShort, opReturn and opKeep below. The eight immediate opcodes
// (Brk, Jci, Jmi, Jsi, Lit, Lit2, Litr, Lit2r) all alias base op 0
// and are recognized by matching the full byte, not the decomposition,
// before the generic dispatch ever looks at the mode bits.
const (
	opBrk Cell = iota // 0x00, also Jci/Jmi/Jsi/Lit* depending on mode bits
	opInc
	opPop
	opNip
	opSwp
	opRot
	opDup
	opOvr
	opEqu
	opNeq
	opGth
	opLth
	opJmp
	opJcn
	opJsr
	opSth
	opLdz
	opStz
	opLdr
	opStr
	opLda
	opSta
	opDei
	opDeo
	opAdd
	opSub
	opMul
	opDiv
	opAnd
	opOra
	opEor
	opSft
)

// Cell is the base-opcode type; it is a plain byte-sized enum, kept as
// its own type so opcode tables read as what they are rather than bare
// bytes.
type Cell = byte

// Mode bits, per spec: bit 5 is short, bit 6 is return-stack, bit 7 is
// keep. The mnemonic suffixes are 2 (short), r (return) and k (keep),
// combined as 2r, k, 2k, kr, 2kr in the opcode map.
const (
	modeShort  byte = 1 << 5
	modeReturn byte = 1 << 6
	modeKeep   byte = 1 << 7
	baseMask   byte = 0x1f
)

func opBase(op byte) byte   { return op & baseMask }
func opShort(op byte) bool  { return op&modeShort != 0 }
func opReturn(op byte) bool { return op&modeReturn != 0 }
func opKeep(op byte) bool   { return op&modeKeep != 0 }

// opcodeNames gives the canonical mnemonic for each base opcode, used by
// MnemonicFor (and through it by internal/disasm and internal/asm).
// Index 0's name is context dependent (brk vs the immediate jumps/lits
// sharing that byte range); MnemonicFor special-cases those bytes
// directly instead of consulting this table.
var opcodeNames = [32]string{
	opBrk: "BRK",
	opInc: "INC",
	opPop: "POP",
	opNip: "NIP",
	opSwp: "SWP",
	opRot: "ROT",
	opDup: "DUP",
	opOvr: "OVR",
	opEqu: "EQU",
	opNeq: "NEQ",
	opGth: "GTH",
	opLth: "LTH",
	opJmp: "JMP",
	opJcn: "JCN",
	opJsr: "JSR",
	opSth: "STH",
	opLdz: "LDZ",
	opStz: "STZ",
	opLdr: "LDR",
	opStr: "STR",
	opLda: "LDA",
	opSta: "STA",
	opDei: "DEI",
	opDeo: "DEO",
	opAdd: "ADD",
	opSub: "SUB",
	opMul: "MUL",
	opDiv: "DIV",
	opAnd: "AND",
	opOra: "ORA",
	opEor: "EOR",
	opSft: "SFT",
}

// Immediate opcode bytes. These override the short/return/keep
// decomposition entirely: bit patterns that would otherwise read as
// Brk/2/r/k instead mean Jci/Jmi/Jsi/Lit/Lit2/Litr/Lit2r. Keep never
// applies to immediates.
const (
	opcodeBRK   byte = 0x00
	opcodeJCI   byte = 0x20
	opcodeJMI   byte = 0x40
	opcodeJSI   byte = 0x60
	opcodeLIT   byte = 0x80
	opcodeLIT2  byte = 0xa0
	opcodeLITr  byte = 0xc0
	opcodeLIT2r byte = 0xe0
)

// MnemonicFor returns the human-readable mnemonic for a raw opcode byte,
// including its mode suffix (2, r, k and combinations), e.g. 0xa6 ->
// "DUP2k". It is exported for use by hosts building disassemblers or
// debuggers; the interpreter itself uses it only to name the opcode in
// a recovered device-callback panic.
func MnemonicFor(op byte) string {
	switch op {
	case opcodeBRK:
		return "BRK"
	case opcodeJCI:
		return "JCI"
	case opcodeJMI:
		return "JMI"
	case opcodeJSI:
		return "JSI"
	case opcodeLIT:
		return "LIT"
	case opcodeLIT2:
		return "LIT2"
	case opcodeLITr:
		return "LITr"
	case opcodeLIT2r:
		return "LIT2r"
	}
	name := opcodeNames[opBase(op)]
	suffix := ""
	if opShort(op) {
		suffix += "2"
	}
	if opKeep(op) {
		suffix += "k"
	}
	if opReturn(op) {
		suffix += "r"
	}
	return name + suffix
}

var opcodeByName = buildOpcodeByName()

func buildOpcodeByName() map[string]byte {
	m := make(map[string]byte, 256)
	for op := 0; op < 256; op++ {
		m[strings.ToUpper(MnemonicFor(byte(op)))] = byte(op)
	}
	return m
}

// OpcodeByte returns the raw opcode byte for a mnemonic such as "DUP2k"
// or "jci", matched case-insensitively, and reports whether it matched
// one of the 256 opcodes. It is the inverse of MnemonicFor, exported for
// hosts building assemblers or other tooling on top of this core.
func OpcodeByte(mnemonic string) (byte, bool) {
	b, ok := opcodeByName[strings.ToUpper(mnemonic)]
	return b, ok
}

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

import "github.com/pkg/errors"

// push1 pushes a single byte. idx wraps mod 256: there is no overflow
// trap, pushing past 256 bytes simply overwrites the oldest entries.
func (s *stack) push1(v byte) {
	s.idx++
	s.data[s.idx] = v
}

// pop1 pops a single byte. Underflow is not an error: popping past the
// bottom of the stack reads whatever byte currently occupies the
// wrapped slot, exactly as the reference machine does.
func (s *stack) pop1() byte {
	v := s.data[s.idx]
	s.idx--
	return v
}

// peek1 reads the byte n positions below the top (n=0 is the top)
// without mutating idx.
func (s *stack) peek1(n uint8) byte {
	return s.data[s.idx-n]
}

// push2 pushes a short, big-endian: the high byte is pushed first, so
// after the call the low byte is on top.
func (s *stack) push2(v uint16) {
	s.push1(byte(v >> 8))
	s.push1(byte(v))
}

// pop2 pops a short pushed by push2: the low byte was on top.
func (s *stack) pop2() uint16 {
	lo := s.pop1()
	hi := s.pop1()
	return uint16(hi)<<8 | uint16(lo)
}

// view wraps one of the VM's two stacks for a single opcode dispatch,
// applying the short and keep mode bits. In keep mode, reads go through
// koff (a virtual top-of-stack offset) instead of mutating idx, so
// operands remain on the stack after the opcode runs; pushes always
// mutate idx for real, in either mode.
type view struct {
	s     *stack
	short bool
	keep  bool
	koff  uint8
}

func (v *view) pop1() byte {
	if v.keep {
		b := v.s.peek1(v.koff)
		v.koff++
		return b
	}
	return v.s.pop1()
}

func (v *view) pop2() uint16 {
	lo := v.pop1()
	hi := v.pop1()
	return uint16(hi)<<8 | uint16(lo)
}

// pop reads one operand at the view's configured width.
func (v *view) pop() uint16 {
	if v.short {
		return v.pop2()
	}
	return uint16(v.pop1())
}

// push writes a result at the view's configured width.
func (v *view) push(val uint16) {
	if v.short {
		v.s.push2(val)
	} else {
		v.s.push1(byte(val))
	}
}

// pushBool pushes the comparison opcodes' result, which the spec pins
// to always be byte-sized regardless of the short mode bit.
func (v *view) pushBool(b bool) {
	if b {
		v.s.push1(1)
	} else {
		v.s.push1(0)
	}
}

// Run executes opcodes starting at pc until a BRK is reached, and
// returns the PC one past that BRK. A device callback reached through
// DEI/DEO may reenter Run on the same VM; each such invocation keeps its
// own program counter in a Go-local variable rather than vm.PC, so a
// nested call cannot disturb the caller's place in its own instruction
// stream. vm.PC itself is only ever published for outside inspection
// (e.g. from within a device callback, or by a panic handler); it is
// never read back as the authority for control flow.
//
// Run never returns an error for opcode execution: per the core's
// failure semantics, there are no opcode faults. The only abnormal path
// is a panic escaping a device callback. If the panic value is an
// error, Run recovers it, annotates it with the PC and opcode that were
// executing, and either hands it to the configured panic handler
// (WithPanicHandler) or re-panics so a caller further up can recover
// it. Any other panic value is re-panicked unchanged.
func (vm *VM) Run(pc uint16) uint16 {
	var opPC uint16
	var op byte
	defer func() {
		e := recover()
		if e == nil {
			return
		}
		err, ok := e.(error)
		if !ok {
			panic(e)
		}
		wrapped := errors.Wrapf(err, "uxn: device callback panicked @pc=%#04x executing %s", opPC, MnemonicFor(op))
		if vm.panicHandler != nil {
			vm.panicHandler(wrapped)
			return
		}
		panic(wrapped)
	}()
	for {
		opPC = pc
		vm.PC = pc
		op = vm.Mem[pc]
		pc++
		if op == opcodeBRK {
			vm.PC = pc
			return pc
		}
		pc = vm.dispatch(op, pc)
	}
}

// dispatch transfers control to the handler for op and returns the
// program counter to resume at, threading pc as a value rather than
// through vm.PC so reentrant Run calls cannot corrupt it. Handler
// selection is exact: the eight immediate opcodes occupy every mode-bit
// combination of base opcode 0, so opBase(op) == 0 always means
// "immediate", never a generic BRK variant, and the generic path below
// never sees base 0.
func (vm *VM) dispatch(op byte, pc uint16) uint16 {
	if opBase(op) == 0 {
		return vm.dispatchImmediate(op, pc)
	}
	short := opShort(op)
	ret := opReturn(op)
	keep := opKeep(op)
	active := &vm.work
	if ret {
		active = &vm.ret
	}
	v := view{s: active, short: short, keep: keep}

	switch opBase(op) {
	case opInc:
		a := v.pop()
		v.push(a + 1)
	case opPop:
		v.pop()
	case opNip:
		b := v.pop()
		v.pop()
		v.push(b)
	case opSwp:
		b := v.pop()
		a := v.pop()
		v.push(b)
		v.push(a)
	case opRot:
		c := v.pop()
		b := v.pop()
		a := v.pop()
		v.push(b)
		v.push(c)
		v.push(a)
	case opDup:
		a := v.pop()
		v.push(a)
		v.push(a)
	case opOvr:
		b := v.pop()
		a := v.pop()
		v.push(a)
		v.push(b)
		v.push(a)
	case opEqu:
		b := v.pop()
		a := v.pop()
		v.pushBool(a == b)
	case opNeq:
		b := v.pop()
		a := v.pop()
		v.pushBool(a != b)
	case opGth:
		b := v.pop()
		a := v.pop()
		v.pushBool(a > b)
	case opLth:
		b := v.pop()
		a := v.pop()
		v.pushBool(a < b)
	case opJmp:
		pc = vm.doJmp(&v, pc)
	case opJcn:
		pc = vm.doJcn(&v, pc)
	case opJsr:
		pc = vm.doJsr(&v, pc, ret)
	case opSth:
		vm.doSth(&v, ret)
	case opLdz:
		vm.doLdz(&v)
	case opStz:
		vm.doStz(&v)
	case opLdr:
		vm.doLdr(&v, pc)
	case opStr:
		vm.doStr(&v, pc)
	case opLda:
		vm.doLda(&v)
	case opSta:
		vm.doSta(&v)
	case opDei:
		vm.doDei(&v)
	case opDeo:
		vm.doDeo(&v)
	case opAdd:
		b := v.pop()
		a := v.pop()
		v.push(a + b)
	case opSub:
		b := v.pop()
		a := v.pop()
		v.push(a - b)
	case opMul:
		b := v.pop()
		a := v.pop()
		v.push(a * b)
	case opDiv:
		b := v.pop()
		a := v.pop()
		if b == 0 {
			v.push(0)
		} else {
			v.push(a / b)
		}
	case opAnd:
		b := v.pop()
		a := v.pop()
		v.push(a & b)
	case opOra:
		b := v.pop()
		a := v.pop()
		v.push(a | b)
	case opEor:
		b := v.pop()
		a := v.pop()
		v.push(a ^ b)
	case opSft:
		vm.doSft(&v)
	}
	return pc
}

// dispatchImmediate handles the eight opcodes that override the
// short/return/keep decomposition: BRK (handled by Run before it ever
// reaches here), JCI/JMI/JSI and the four LIT variants.
func (vm *VM) dispatchImmediate(op byte, pc uint16) uint16 {
	switch op {
	case opcodeJCI:
		hi, lo, pc2 := vm.fetch2(pc)
		cond := vm.work.pop1()
		if cond != 0 {
			pc2 += uint16(hi)<<8 | uint16(lo)
		}
		return pc2
	case opcodeJMI:
		hi, lo, pc2 := vm.fetch2(pc)
		return pc2 + (uint16(hi)<<8 | uint16(lo))
	case opcodeJSI:
		hi, lo, pc2 := vm.fetch2(pc)
		vm.ret.push2(pc2)
		return pc2 + (uint16(hi)<<8 | uint16(lo))
	case opcodeLIT:
		b, pc2 := vm.fetch1(pc)
		vm.work.push1(b)
		return pc2
	case opcodeLIT2:
		hi, lo, pc2 := vm.fetch2(pc)
		vm.work.push1(hi)
		vm.work.push1(lo)
		return pc2
	case opcodeLITr:
		b, pc2 := vm.fetch1(pc)
		vm.ret.push1(b)
		return pc2
	case opcodeLIT2r:
		hi, lo, pc2 := vm.fetch2(pc)
		vm.ret.push1(hi)
		vm.ret.push1(lo)
		return pc2
	}
	return pc
}

func (vm *VM) fetch1(pc uint16) (b byte, next uint16) {
	return vm.Mem[pc], pc + 1
}

func (vm *VM) fetch2(pc uint16) (hi, lo byte, next uint16) {
	hi, pc = vm.fetch1(pc)
	lo, pc = vm.fetch1(pc)
	return hi, lo, pc
}

// doJmp implements JMP/JMP2/JMPr/JMP2r. In byte mode the popped operand
// is a signed relative offset; in short mode it is read as an absolute
// target, consistent with JCN's "same as JMP2" note disambiguating
// spec.md's short-mode wording (see DESIGN.md).
func (vm *VM) doJmp(v *view, pc uint16) uint16 {
	return vm.jumpTarget(v, pc)
}

// doJcn implements JCN/JCN2/JCNr/JCN2r: pop the target the same way JMP
// does, then pop the condition; take the jump only if it's non-zero.
func (vm *VM) doJcn(v *view, pc uint16) uint16 {
	target := vm.jumpTarget(v, pc)
	if v.pop1() != 0 {
		return target
	}
	return pc
}

// doJsr implements JSR/JSR2/JSRr/JSR2r: jump as JMP would, then stash the
// pre-jump PC onto the stack complementary to the active one — the
// return stack normally, but the work stack when r-mode is set, since
// in that case the jump target came from ret and the stashed PC has to
// land on work instead. This mirrors doSth's dst-swap.
func (vm *VM) doJsr(v *view, pc uint16, ret bool) uint16 {
	target := vm.jumpTarget(v, pc)
	dst := &vm.ret
	if ret {
		dst = &vm.work
	}
	dst.push2(pc)
	return target
}

func (vm *VM) jumpTarget(v *view, pc uint16) uint16 {
	if v.short {
		return v.pop2()
	}
	off := int8(v.pop1())
	return uint16(int32(pc) + int32(off))
}

// doSth implements STH/STHr: pop a value off the active stack and push
// it onto the other one. The destination push is never itself a keep
// operation; keep only ever protects the source pop.
func (vm *VM) doSth(v *view, ret bool) {
	val := v.pop()
	dst := &vm.ret
	if ret {
		dst = &vm.work
	}
	d := view{s: dst, short: v.short}
	d.push(val)
}

// doLdz implements LDZ/LDZ2/LDZr/LDZ2r: zero-page load. The address is
// always a single byte; addr+1 for the short form can legitimately run
// past 0x00FF, it is not re-wrapped into the zero page.
func (vm *VM) doLdz(v *view) {
	addr := uint16(v.pop1())
	vm.load(v, addr)
}

// doStz implements STZ/STZ2/STZr/STZ2r.
func (vm *VM) doStz(v *view) {
	addr := uint16(v.pop1())
	vm.store(v, addr)
}

// doLdr implements LDR/LDR2/LDRr/LDR2r: address is PC plus a signed
// 8-bit offset, regardless of the short mode bit (which only governs
// the width of the loaded value).
func (vm *VM) doLdr(v *view, pc uint16) {
	off := int8(v.pop1())
	addr := uint16(int32(pc) + int32(off))
	vm.load(v, addr)
}

// doStr implements STR/STR2/STRr/STR2r.
func (vm *VM) doStr(v *view, pc uint16) {
	off := int8(v.pop1())
	addr := uint16(int32(pc) + int32(off))
	vm.store(v, addr)
}

// doLda implements LDA/LDA2/LDAr/LDA2r: the address is always a full
// 16-bit value, regardless of the short mode bit.
func (vm *VM) doLda(v *view) {
	addr := v.pop2()
	vm.load(v, addr)
}

// doSta implements STA/STA2/STAr/STA2r.
func (vm *VM) doSta(v *view) {
	addr := v.pop2()
	vm.store(v, addr)
}

func (vm *VM) load(v *view, addr uint16) {
	if v.short {
		hi := vm.Mem[addr]
		lo := vm.Mem[addr+1]
		v.push(uint16(hi)<<8 | uint16(lo))
	} else {
		v.push(uint16(vm.Mem[addr]))
	}
}

func (vm *VM) store(v *view, addr uint16) {
	if v.short {
		lo := v.pop1()
		hi := v.pop1()
		vm.Mem[addr] = hi
		vm.Mem[addr+1] = lo
	} else {
		vm.Mem[addr] = v.pop1()
	}
}

// doDei implements DEI/DEI2/DEIr/DEI2r. The device port address is
// always a single byte; the short bit governs only the value width.
//
// The stack indices the bridge callback would observe through
// WorkStack/RetStack/PushWork/PopRet etc. live directly in the VM
// struct rather than in any loop-local cache, so there is nothing to
// publish before making this call: vm.dei sees the state exactly as it
// stands, and may freely mutate it or reenter Run.
func (vm *VM) doDei(v *view) {
	port := v.pop1()
	var val uint16
	if vm.dei != nil {
		val = vm.dei(vm, port, v.short)
	}
	v.push(val)
}

// doDeo implements DEO/DEO2/DEOr/DEO2r. The returned continuation flag
// is reserved for a future early-exit path and is currently always
// honored as "continue", matching observable reference behavior.
func (vm *VM) doDeo(v *view) {
	port := v.pop1()
	val := v.pop()
	if vm.deo != nil {
		vm.deo(vm, port, val, v.short)
	}
}

// doSft implements SFT/SFT2/SFTr/SFT2r: the shift amount is always a
// single byte (low nibble = right shift, high nibble = left shift,
// applied right then left) regardless of the short mode bit, which
// governs only the shifted value's width.
func (vm *VM) doSft(v *view) {
	sft := v.pop1()
	right := uint(sft & 0x0f)
	left := uint(sft >> 4)
	val := v.pop()
	val >>= right
	val <<= left
	v.push(val)
}

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

// Package vm implements the Uxn processor core: a stack-based 8-bit CPU
// with a 16-bit address space, 256 opcodes, and a narrow device-I/O
// bridge. It does not know anything about concrete devices, ROM loading,
// or event loops: those are the host's job. All a host needs to supply
// is a 64KiB memory array and, optionally, a pair of callbacks that
// service DEI/DEO.
package vm

import "github.com/pkg/errors"

// MemSize is the size in bytes of a Uxn VM's address space.
const MemSize = 1 << 16

// DeviceIn is called on DEI/DEI2 to read a device port. wide is true for
// the 2-byte ("2") variants. It may reenter Run on the same VM (vector
// invocation).
type DeviceIn func(vm *VM, port byte, wide bool) uint16

// DeviceOut is called on DEO/DEO2 to write a device port. wide is true
// for the 2-byte ("2") variants. The returned bool is accepted but not
// acted on: Run always continues after DEO, whatever the callback
// returns.
type DeviceOut func(vm *VM, port byte, value uint16, wide bool) bool

// stack is a 256-byte circular buffer with an 8-bit index, used for both
// the working stack and the return stack. idx is the index of the
// top-of-stack byte, not a length: pushing increments idx first (mod
// 256) then writes, popping reads then decrements. There is no overflow
// or underflow trap; the buffer simply wraps.
type stack struct {
	data [256]byte
	idx  uint8
}

// VM is a Uxn processor instance: 64KiB of memory, a working stack, a
// return stack, and a program counter. The zero value is not usable;
// construct one with New.
type VM struct {
	Mem []byte

	PC uint16

	work stack
	ret  stack

	dei DeviceIn
	deo DeviceOut

	// panicHandler, if set, is called (instead of re-panicking) when a
	// device callback panics during Run. See WithPanicHandler.
	panicHandler func(error)
}

// Option configures a VM at construction time.
type Option func(*VM) error

// WithDevice binds the device bridge callbacks used to service
// DEI/DEI2/DEO/DEO2. Either may be nil, in which case DEI reads as 0 and
// DEO is a no-op, which matches running a ROM with no attached devices.
func WithDevice(in DeviceIn, out DeviceOut) Option {
	return func(vm *VM) error {
		vm.dei = in
		vm.deo = out
		return nil
	}
}

// WithPanicHandler installs a handler invoked when a device callback
// panics with an error value during Run, instead of letting the wrapped
// error propagate as a panic. A panic with a non-error value is not
// passed to the handler; it propagates unchanged. This is useful for hosts that want to log and keep the VM
// instance around for inspection rather than unwind past Run.
func WithPanicHandler(h func(error)) Option {
	return func(vm *VM) error {
		vm.panicHandler = h
		return nil
	}
}

// SetOptions applies the given options to vm.
func (vm *VM) SetOptions(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(vm); err != nil {
			return err
		}
	}
	return nil
}

// New creates a new Uxn VM instance. mem is the caller-owned 64KiB
// memory buffer; New does not copy it, so it must alias it: mutations
// the caller makes to mem (loading a ROM at 0x0100, for instance) are
// visible to the VM and vice versa, consistent with this core never
// owning memory of its own. mem must be exactly MemSize bytes long.
func New(mem []byte, opts ...Option) (*VM, error) {
	if len(mem) != MemSize {
		return nil, errors.Errorf("vm.New: memory must be exactly %d bytes, got %d", MemSize, len(mem))
	}
	vm := &VM{Mem: mem}
	// Both stacks start empty: idx sits one below slot 0, so the first
	// push lands in data[0].
	vm.work.idx = 0xff
	vm.ret.idx = 0xff
	if err := vm.SetOptions(opts...); err != nil {
		return nil, err
	}
	return vm, nil
}

// WorkDepth returns the number of bytes logically on the working stack,
// i.e. work.idx + 1 mod 256. Because the stack wraps, this is only
// meaningful while fewer than 256 bytes are on the stack: a full stack
// of 256 bytes reads as depth 0.
func (vm *VM) WorkDepth() int {
	return int(vm.work.idx + 1)
}

// RetDepth mirrors WorkDepth for the return stack.
func (vm *VM) RetDepth() int {
	return int(vm.ret.idx + 1)
}

// WorkStack returns a copy of the working stack contents from the
// bottom-most byte written up to and including the current top, for
// inspection (tests, debuggers). It does not account for wrapping: it
// returns WorkDepth bytes, so a stack holding 256 bytes reads as empty,
// and after more than 256 pushes without matching pops, earlier bytes
// are gone.
func (vm *VM) WorkStack() []byte {
	return snapshot(&vm.work)
}

// RetStack mirrors WorkStack for the return stack.
func (vm *VM) RetStack() []byte {
	return snapshot(&vm.ret)
}

func snapshot(s *stack) []byte {
	n := int(s.idx + 1)
	out := make([]byte, n)
	copy(out, s.data[:n])
	return out
}

// PushWork pushes a byte onto the working stack. Intended for device
// bridge callbacks (DeviceIn/DeviceOut implementations) that need to
// hand a value back to the running program outside of the normal
// DEI/DEO push.
func (vm *VM) PushWork(v byte) { vm.work.push1(v) }

// PopWork pops a byte off the working stack.
func (vm *VM) PopWork() byte { return vm.work.pop1() }

// PushWork2 pushes a big-endian short onto the working stack.
func (vm *VM) PushWork2(v uint16) { vm.work.push2(v) }

// PopWork2 pops a big-endian short off the working stack.
func (vm *VM) PopWork2() uint16 { return vm.work.pop2() }

// PushRet pushes a byte onto the return stack.
func (vm *VM) PushRet(v byte) { vm.ret.push1(v) }

// PopRet pops a byte off the return stack.
func (vm *VM) PopRet() byte { return vm.ret.pop1() }

// PushRet2 pushes a big-endian short onto the return stack.
func (vm *VM) PushRet2(v uint16) { vm.ret.push2(v) }

// PopRet2 pops a big-endian short off the return stack.
func (vm *VM) PopRet2() uint16 { return vm.ret.pop2() }

// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

//go:build windows

package omnirig

import (
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// IMPLTYPEFLAGS of the coclass's event interface
const (
	implTypeDefault = 0x1
	implTypeSource  = 0x2
)

var errNoEventInterface = errors.New("no default source interface")

// comCall invokes a vtable slot and converts a failing HRESULT.
func comCall(fn uintptr, args ...uintptr) error {
	hr, _, _ := syscall.SyscallN(fn, args...)
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}

func releaseTypeAttr(ti *ole.ITypeInfo, attr *ole.TYPEATTR) {
	_, _, _ = syscall.SyscallN(ti.VTable().ReleaseTypeAttr,
		uintptr(unsafe.Pointer(ti)), uintptr(unsafe.Pointer(attr)))
}

// customReplyEvent finds the server's default source interface in its
// type library and the DISPID of CustomReply on it.
func customReplyEvent(disp *ole.IDispatch) (*ole.GUID, int32, error) {
	unknown, err := disp.QueryInterface(ole.IID_IProvideClassInfo)
	if err != nil {
		return nil, 0, fmt.Errorf("class info: %w", err)
	}
	defer unknown.Release()

	classInfo, err := (*ole.IProvideClassInfo)(unsafe.Pointer(unknown)).GetClassInfo()
	if err != nil {
		return nil, 0, fmt.Errorf("class info: %w", err)
	}
	defer classInfo.Release()

	attr, err := classInfo.GetTypeAttr()
	if err != nil {
		return nil, 0, fmt.Errorf("type attributes: %w", err)
	}
	implTypes := int(attr.CImplTypes)
	releaseTypeAttr(classInfo, attr)

	vtbl := classInfo.VTable()
	this := uintptr(unsafe.Pointer(classInfo))
	for i := range implTypes {
		var flags int32
		if err := comCall(vtbl.GetImplTypeFlags, this, uintptr(i), uintptr(unsafe.Pointer(&flags))); err != nil {
			return nil, 0, fmt.Errorf("impl type %d flags: %w", i, err)
		}
		if flags&(implTypeDefault|implTypeSource) != implTypeDefault|implTypeSource {
			continue
		}

		var href uint32
		if err := comCall(vtbl.GetRefTypeOfImplType, this, uintptr(i), uintptr(unsafe.Pointer(&href))); err != nil {
			return nil, 0, fmt.Errorf("impl type %d: %w", i, err)
		}
		var events *ole.ITypeInfo
		if err := comCall(vtbl.GetRefTypeInfo, this, uintptr(href), uintptr(unsafe.Pointer(&events))); err != nil {
			return nil, 0, fmt.Errorf("impl type %d: %w", i, err)
		}
		defer events.Release()
		return eventMember(events, "CustomReply")
	}
	return nil, 0, errNoEventInterface
}

// eventMember returns the interface GUID of events and the member ID of name.
func eventMember(events *ole.ITypeInfo, name string) (*ole.GUID, int32, error) {
	attr, err := events.GetTypeAttr()
	if err != nil {
		return nil, 0, fmt.Errorf("event attributes: %w", err)
	}
	iid := attr.Guid
	releaseTypeAttr(events, attr)

	wname, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return nil, 0, err
	}
	var memberID int32
	if err := comCall(events.VTable().GetIDsOfNames, uintptr(unsafe.Pointer(events)),
		uintptr(unsafe.Pointer(&wname)), 1, uintptr(unsafe.Pointer(&memberID))); err != nil {
		return nil, 0, fmt.Errorf("event %s: %w", name, err)
	}
	return &iid, memberID, nil
}

// dispParams mirrors DISPPARAMS.
type dispParams struct {
	args       *ole.VARIANT
	namedArgs  *int32
	cArgs      uint32
	cNamedArgs uint32
}

// sinkVtbl is an IDispatch vtable.
type sinkVtbl struct {
	queryInterface   uintptr
	addRef           uintptr
	release          uintptr
	getTypeInfoCount uintptr
	getTypeInfo      uintptr
	getIDsOfNames    uintptr
	invoke           uintptr
}

// replySink is the event object handed to Advise. vtbl must stay the first
// field. The server holds a pointer to it, so whoever advises it keeps it
// reachable until Unadvise.
type replySink struct {
	vtbl     *sinkVtbl
	iid      *ole.GUID
	handler  replyHandler
	refs     atomic.Int32
	memberID int32
}

var sharedSinkVtbl = &sinkVtbl{
	queryInterface:   syscall.NewCallback(sinkQueryInterface),
	addRef:           syscall.NewCallback(sinkAddRef),
	release:          syscall.NewCallback(sinkRelease),
	getTypeInfoCount: syscall.NewCallback(sinkGetTypeInfoCount),
	getTypeInfo:      syscall.NewCallback(sinkGetTypeInfo),
	getIDsOfNames:    syscall.NewCallback(sinkGetIDsOfNames),
	invoke:           syscall.NewCallback(sinkInvoke),
}

func newReplySink(iid *ole.GUID, memberID int32, h replyHandler) *replySink {
	return &replySink{vtbl: sharedSinkVtbl, iid: iid, memberID: memberID, handler: h}
}

func (s *replySink) unknown() *ole.IUnknown {
	return (*ole.IUnknown)(unsafe.Pointer(s))
}

func sinkQueryInterface(this *replySink, iid *ole.GUID, out *unsafe.Pointer) uintptr {
	*out = nil
	if ole.IsEqualGUID(iid, ole.IID_IUnknown) ||
		ole.IsEqualGUID(iid, ole.IID_IDispatch) ||
		ole.IsEqualGUID(iid, this.iid) {
		this.refs.Add(1)
		*out = unsafe.Pointer(this)
		return ole.S_OK
	}
	return ole.E_NOINTERFACE
}

func sinkAddRef(this *replySink) uintptr {
	return uintptr(this.refs.Add(1))
}

func sinkRelease(this *replySink) uintptr {
	return uintptr(this.refs.Add(-1))
}

func sinkGetTypeInfoCount(_ *replySink, count *uint32) uintptr {
	if count != nil {
		*count = 0
	}
	return ole.S_OK
}

func sinkGetTypeInfo(_ *replySink, _, _, _ uintptr) uintptr {
	return ole.E_NOTIMPL
}

func sinkGetIDsOfNames(_ *replySink, _, _, _, _, _ uintptr) uintptr {
	return ole.E_NOTIMPL
}

// sinkInvoke handles CustomReply(RigNumber, Command, Reply). Arguments
// arrive in reverse order. Every other event is acknowledged and dropped.
func sinkInvoke(this *replySink, dispID, _, _, _ uintptr, params *dispParams, _, _, _ uintptr) uintptr {
	if int32(dispID) != this.memberID || params == nil || params.cArgs < 3 { //nolint:gosec // DISPID is a LONG
		return ole.S_OK
	}
	args := unsafe.Slice(params.args, params.cArgs)
	rig, ok := variantInt(&args[2])
	if !ok {
		return ole.S_OK
	}
	this.handler(rig, variantBytes(&args[1]), variantBytes(&args[0]))
	return ole.S_OK
}

// deref follows a VT_BYREF|VT_VARIANT argument.
func deref(v *ole.VARIANT) *ole.VARIANT {
	if v.VT == ole.VT_BYREF|ole.VT_VARIANT {
		return (*ole.VARIANT)(unsafe.Pointer(uintptr(v.Val)))
	}
	return v
}

func variantInt(v *ole.VARIANT) (int, bool) {
	v = deref(v)
	switch v.VT {
	case ole.VT_I2:
		return int(int16(v.Val)), true //nolint:gosec // VT_I2 holds 16 bits
	case ole.VT_I4, ole.VT_INT:
		return int(int32(v.Val)), true //nolint:gosec // VT_I4 holds 32 bits
	case ole.VT_BYREF | ole.VT_I4:
		return int(*(*int32)(unsafe.Pointer(uintptr(v.Val)))), true
	default:
		return 0, false
	}
}

// variantBytes reads a byte safe array, by value or by reference.
func variantBytes(v *ole.VARIANT) []byte {
	v = deref(v)
	if v.VT == ole.VT_BYREF|ole.VT_ARRAY|ole.VT_UI1 {
		arr := ole.VARIANT{VT: ole.VT_ARRAY | ole.VT_UI1, Val: int64(*(*uintptr)(unsafe.Pointer(uintptr(v.Val))))}
		v = &arr
	}
	if v.VT != ole.VT_ARRAY|ole.VT_UI1 {
		return nil
	}
	conv := v.ToArray()
	if conv == nil || conv.Array == nil {
		return nil
	}
	return conv.ToByteArray()
}

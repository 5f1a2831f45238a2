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
	"context"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	icomclock "github.com/ZaparooProject/go-icomclock"
	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// sFalse is returned by CoInitializeEx when COM is already initialized on
// the thread.
const sFalse = 0x00000001

// oleServer is an OmniRigX object reached through IDispatch. COM was
// initialized on a locked OS thread, which is unlocked again on Release.
// The thread joins the multithreaded apartment so that events are
// delivered on RPC threads without a message loop.
type oleServer struct {
	disp  *ole.IDispatch
	sinks []*replySink
}

func dialOLE(ctx context.Context, progID string) (automation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("%w: %w", icomclock.ErrServiceInit, err)
		}
	}

	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: %s: %w", icomclock.ErrServiceCreate, progID, err)
	}
	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: %s: %w", icomclock.ErrServiceCreate, progID, err)
	}

	icomclock.Debugf("omnirig: created %s", progID)
	return &oleServer{disp: disp}, nil
}

func intProperty(disp *ole.IDispatch, name string) (int32, error) {
	v, err := oleutil.GetProperty(disp, name)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", name, err)
	}
	defer func() { _ = v.Clear() }()
	return int32(v.Val), nil //nolint:gosec // COM long properties are 32 bit
}

func stringProperty(disp *ole.IDispatch, name string) (string, error) {
	v, err := oleutil.GetProperty(disp, name)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", name, err)
	}
	defer func() { _ = v.Clear() }()
	return v.ToString(), nil
}

func (s *oleServer) SoftwareVersion() (int32, error) {
	return intProperty(s.disp, "SoftwareVersion")
}

func (s *oleServer) InterfaceVersion() (int32, error) {
	return intProperty(s.disp, "InterfaceVersion")
}

func (s *oleServer) Rig(slot int) (rigObject, error) {
	v, err := oleutil.GetProperty(s.disp, fmt.Sprintf("Rig%d", slot))
	if err != nil {
		return nil, fmt.Errorf("get Rig%d: %w", slot, err)
	}
	disp := v.ToIDispatch()
	if disp == nil {
		return nil, fmt.Errorf("get Rig%d: not an object", slot)
	}
	return &oleRig{disp: disp}, nil
}

// OnCustomReply advises an event sink on the server's connection point
// for its default source interface.
func (s *oleServer) OnCustomReply(h replyHandler) (func() error, error) {
	iid, memberID, err := customReplyEvent(s.disp)
	if err != nil {
		return nil, err
	}

	unknown, err := s.disp.QueryInterface(ole.IID_IConnectionPointContainer)
	if err != nil {
		return nil, fmt.Errorf("connection points: %w", err)
	}
	container := (*ole.IConnectionPointContainer)(unsafe.Pointer(unknown))
	defer container.Release()

	var point *ole.IConnectionPoint
	if err := container.FindConnectionPoint(iid, &point); err != nil {
		return nil, fmt.Errorf("find connection point %s: %w", iid, err)
	}

	sink := newReplySink(iid, memberID, h)
	cookie, err := point.Advise(sink.unknown())
	if err != nil {
		point.Release()
		return nil, fmt.Errorf("advise: %w", err)
	}
	s.sinks = append(s.sinks, sink)
	icomclock.Debugf("omnirig: listening for CustomReply (%s, member %d)", iid, memberID)

	return func() error {
		err := point.Unadvise(cookie)
		point.Release()
		if err != nil {
			return fmt.Errorf("unadvise: %w", err)
		}
		return nil
	}, nil
}

func (s *oleServer) Release() error {
	s.disp.Release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return nil
}

type oleRig struct {
	disp *ole.IDispatch
}

func (r *oleRig) Status() (int32, error) {
	return intProperty(r.disp, "Status")
}

func (r *oleRig) StatusText() (string, error) {
	return stringProperty(r.disp, "StatusStr")
}

func (r *oleRig) RigType() (string, error) {
	return stringProperty(r.disp, "RigType")
}

func (r *oleRig) SendCustomCommand(data []byte, replyLength int32, replyEnd string) error {
	// go-ole passes a []byte as a VT_ARRAY|VT_UI1 safe array
	_, err := oleutil.CallMethod(r.disp, "SendCustomCommand", data, replyLength, replyEnd)
	if err != nil {
		return fmt.Errorf("SendCustomCommand: %w", err)
	}
	return nil
}

func (r *oleRig) Release() error {
	r.disp.Release()
	return nil
}

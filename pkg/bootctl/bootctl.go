// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bootctl sequences one boot attempt: fuse init, a flash-path
// attempt via pkg/ffff+pkg/tftf, a fallback to the fetch path via
// pkg/fetch, trust-transition lockdown, and jump or halt.
//
// Grounded on cmds/utk/utk.go's role as a sequenced driver of a chain of
// operations over pkg/uefi, generalized from "apply a list of visitors to
// a firmware tree" to "try flash, then try fetch, then jump or halt".
package bootctl

import (
	"github.com/hashicorp/go-multierror"

	"github.com/projectara/bootrom-sub001/pkg/bromerr"
	"github.com/projectara/bootrom-sub001/pkg/bromlog"
	"github.com/projectara/bootrom-sub001/pkg/commarea"
	bromcrypto "github.com/projectara/bootrom-sub001/pkg/crypto"
	"github.com/projectara/bootrom-sub001/pkg/ffff"
	"github.com/projectara/bootrom-sub001/pkg/storage"
	"github.com/projectara/bootrom-sub001/pkg/tftf"
)

// BootContext owns every piece of mutable state for a single boot attempt,
// per spec.md §9 ("no process-wide singletons"; a single owned BootContext
// threaded through every entry point).
type BootContext struct {
	Log bromlog.Logger

	Status StatusWord
	Comm   *commarea.Area

	// FuseInit is the external fuse subsystem (out of scope, see
	// pkg/bromerr.GroupFuse): it returns the four identity fields
	// {unipro_vid, unipro_pid, ara_vid, ara_pid} the TFTF engine checks
	// against a header's wildcard-or-match fields.
	FuseInit func() (fuseIDs [4]uint32, err error)

	// SPIBootSelected mirrors the boot-selector read spec.md §4.G step 4
	// names; when false the controller goes straight to the fetch path.
	SPIBootSelected bool

	FlashStorage   storage.Storage
	FlashRAM       []byte
	FlashRAMWindow tftf.RAMWindow

	// FetchStorageFactory is called only when the interconnect path is
	// actually attempted; building the transport (opening the peer channel)
	// is an external concern the boot controller does not own.
	FetchStorageFactory func() (storage.Storage, error)
	FetchRAM            []byte
	FetchRAMWindow      tftf.RAMWindow

	Hasher         bromcrypto.Hasher
	Verifier       bromcrypto.Verifier
	AllowUntrusted bool

	// Lockdown disables access to the master secret, code-signing secret,
	// and JTAG -- the one-way "rig for untrusted" trust transition. Called
	// only when an image loads without a verified signature.
	Lockdown func() error

	// Jump hands control to entry with comm preserved for the next stage.
	// There is no real jump target on a hosted Go binary; tests and
	// cmds/bromsim supply their own.
	Jump func(entry uint32, comm *commarea.Area) error

	// Publish writes the packed boot-status word to the peer-readable
	// mailbox register.
	Publish func(word uint32) error

	haltRecursing bool
}

// StatusWord is an alias so callers of this package don't need a second
// import just to declare a BootContext.
type StatusWord = bromerr.StatusWord

// Run drives one complete boot attempt per spec.md §4.G. It returns nil
// only after a successful Jump. A Jump that returns an error counts as a
// failed path (the flash path then falls back to the fetch path), and an
// attempt that ends without a successful Jump goes to HaltAndCatchFire,
// which never returns (an infinite busy loop).
func Run(ctx *BootContext) error {
	ctx.publish(bromerr.StatusOperating)

	fuseIDs, err := ctx.FuseInit()
	if err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFuse, codeOf(err))
		return ctx.HaltAndCatchFire()
	}

	if ctx.SPIBootSelected {
		if err := ctx.tryFlashPath(fuseIDs); err == nil {
			return nil
		}
		clearRAM(ctx.FlashRAM)
	}

	if err := ctx.tryFetchPath(fuseIDs); err != nil {
		return ctx.HaltAndCatchFire()
	}
	return nil
}

func (ctx *BootContext) tryFlashPath(fuseIDs [4]uint32) error {
	ctx.Status.SetStatus(bromerr.StatusSPIBootStarted)
	ctx.publish(ctx.Status.Status())

	if err := ctx.FlashStorage.Init(); err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFlash, codeOf(err))
		return err
	}

	randomReader, ok := ctx.FlashStorage.(storage.RandomReader)
	if !ok {
		err := errNotRandomAccess
		ctx.Status.SetIfEmpty(bromerr.StageFlash, codeOf(err))
		_ = ctx.FlashStorage.Finish(false, false)
		return err
	}

	el, err := ffff.Locate(randomReader, ffff.ElementStage2Fw)
	if err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFlash, codeOf(err))
		_ = ctx.FlashStorage.Finish(false, false)
		return err
	}

	window := ctx.FlashRAMWindow
	if window.Size == 0 || window.Size > el.Length {
		window.Size = el.Length
	}

	result, err := tftf.LoadImage(ctx.FlashStorage, ctx.FlashRAM, window, fuseIDs,
		ctx.Hasher, ctx.Verifier, ctx.AllowUntrusted, ctx.Comm)
	if err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFlash, codeOf(err))
		_ = ctx.FlashStorage.Finish(false, false)
		return err
	}
	if err := ctx.FlashStorage.Finish(true, result.Secure); err != nil {
		ctx.Log.Warnf("bootctl: flash storage Finish failed: %v", err)
	}

	return ctx.finishBoot(result, bromerr.StatusFinishedTrusted, bromerr.StatusFinishedUntrusted)
}

func (ctx *BootContext) tryFetchPath(fuseIDs [4]uint32) error {
	status := bromerr.StatusUniproBootStarted
	if ctx.SPIBootSelected {
		status = bromerr.StatusFallbackInterconnectStarted
	}
	ctx.Status.SetStatus(status)
	ctx.publish(ctx.Status.Status())

	st, err := ctx.FetchStorageFactory()
	if err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFetch, codeOf(err))
		return err
	}
	if err := st.Init(); err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFetch, codeOf(err))
		return err
	}

	result, err := tftf.LoadImage(st, ctx.FetchRAM, ctx.FetchRAMWindow, fuseIDs,
		ctx.Hasher, ctx.Verifier, ctx.AllowUntrusted, ctx.Comm)
	if err != nil {
		ctx.Status.SetIfEmpty(bromerr.StageFetch, codeOf(err))
		_ = st.Finish(false, false)
		return err
	}
	if err := st.Finish(true, result.Secure); err != nil {
		ctx.Log.Warnf("bootctl: fetch storage Finish failed: %v", err)
	}

	trusted, untrusted := bromerr.StatusFinishedTrusted, bromerr.StatusFinishedUntrusted
	if ctx.SPIBootSelected {
		trusted, untrusted = bromerr.StatusFallbackFinishedTrusted, bromerr.StatusFallbackFinishedUntrusted
	}
	return ctx.finishBoot(result, trusted, untrusted)
}

func (ctx *BootContext) finishBoot(result tftf.LoadResult, trusted, untrusted bromerr.Status) error {
	if !result.Secure {
		if ctx.Lockdown != nil {
			if err := ctx.Lockdown(); err != nil {
				ctx.Log.Errorf("bootctl: trust-transition lockdown failed: %v", err)
			}
		}
		ctx.Status.SetStatus(untrusted)
	} else {
		ctx.Status.SetStatus(trusted)
	}
	ctx.publish(ctx.Status.Status())
	return ctx.Jump(result.EntryPoint, ctx.Comm)
}

// HaltAndCatchFire is the terminal node: it marks the status word FAILED,
// publishes one last time, and spins forever. A recursion guard stops it
// re-entering itself if the publish call itself fails.
func (ctx *BootContext) HaltAndCatchFire() error {
	if ctx.haltRecursing {
		return errHaltRecursion
	}
	ctx.haltRecursing = true

	ctx.Status.Fail()
	if err := ctx.Publish(ctx.Status.Pack()); err != nil {
		ctx.Log.Errorf("bootctl: final status publish failed: %v", err)
	}
	for {
	}
}

func (ctx *BootContext) publish(status bromerr.Status) {
	ctx.Status.SetStatus(status)
	if ctx.Publish == nil {
		return
	}
	if err := ctx.Publish(ctx.Status.Pack()); err != nil {
		ctx.Log.Warnf("bootctl: status publish failed: %v", err)
	}
}

func clearRAM(ram []byte) {
	for i := range ram {
		ram[i] = 0
	}
}

// codeOf extracts the single byte that goes into a StatusWord slot. A
// pkg/tftf validation failure comes back as a *multierror.Error wrapping
// every check that failed in scan order; per spec.md §7 it's the first one
// that gets latched, so unwrap to it before falling back to a direct
// assertion (which is what pkg/ffff's already-Coded errors satisfy).
func codeOf(err error) byte {
	if merr, ok := err.(*multierror.Error); ok {
		for _, wrapped := range merr.WrappedErrors() {
			if coded, ok := wrapped.(bromerr.Coded); ok {
				return coded.Code()
			}
		}
		return 0xFF
	}
	if coded, ok := err.(bromerr.Coded); ok {
		return coded.Code()
	}
	return 0xFF
}

type bootctlError struct{ msg string }

func (e *bootctlError) Error() string { return e.msg }

var (
	errNotRandomAccess = &bootctlError{"bootctl: flash storage does not implement RandomReader"}
	errHaltRecursion   = &bootctlError{"bootctl: HaltAndCatchFire re-entered"}
)

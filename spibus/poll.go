// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package spibus

import (
	"context"
	"time"

	"github.com/hackpascal/goflashprog/status"
)

// PollOptions parameterizes a busy/status poll loop.
type PollOptions struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Timeout      time.Duration
}

// DefaultPollOptions mirrors the teacher's BusyWait shape (fast-path check,
// then a ticker) grounded on gentam-gice/flash.go's BusyWait.
func DefaultPollOptions(timeout time.Duration) PollOptions {
	return PollOptions{
		Interval: time.Millisecond,
		Timeout:  timeout,
	}
}

// Poll is the shared polling core used by Bus.PollStatus and by the NOR/NAND
// cores' register-based busy waits. read is called repeatedly until
// (value&mask)==match, ctx is cancelled, or the timeout elapses.
//
// Per the cancellation REDESIGN in DESIGN.md, ctx is checked in addition to
// the spec'd timeout, never instead of it.
func Poll(ctx context.Context, read func(context.Context) (uint16, error), mask, match uint16, opts PollOptions) error {
	if opts.InitialDelay > 0 {
		if err := sleepCtx(ctx, opts.InitialDelay); err != nil {
			return err
		}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = time.Millisecond
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	for {
		v, err := read(ctx)
		if err != nil {
			return err
		}
		if v&mask == match {
			return nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return status.New(status.Timeout, "spibus.pollStatus")
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return status.Wrap(status.DeviceIOCancelled, "spibus.sleepCtx", ctx.Err())
	case <-timer.C:
		return nil
	}
}

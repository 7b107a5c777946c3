// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import "context"

// cmdCtx returns the context each subcommand's library calls are driven
// with. A real deployment would thread os/signal-derived cancellation
// through here; this reference front end has no interactive cancellation
// source, so background() with no deadline is sufficient.
func cmdCtx() context.Context {
	return context.Background()
}

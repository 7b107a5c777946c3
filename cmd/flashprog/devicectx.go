// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackpascal/goflashprog/devdb"
	"github.com/hackpascal/goflashprog/internal/simctl"
	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/nor"
	"github.com/hackpascal/goflashprog/spibus"
)

// commonFlags groups the flags every subcommand needs to stand up a bus and
// load a device database; each subcommand registers its own copy since
// cobra flags are not inherited between sibling commands.
type commonFlags struct {
	dbDirs  []string
	simID   string
	simSize int64
}

func (c *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&c.dbDirs, "db", nil, "device database directories, in override order")
	cmd.Flags().StringVar(&c.simID, "sim-id", "ef4018", "hex READ-ID bytes the simulated chip answers with")
	cmd.Flags().Int64Var(&c.simSize, "sim-size", 16*1024*1024, "simulated NOR chip size in bytes")
}

func (c *commonFlags) idBytes() ([]byte, error) {
	b, err := hex.DecodeString(c.simID)
	if err != nil {
		return nil, fmt.Errorf("invalid --sim-id: %w", err)
	}
	return b, nil
}

// attachNOR wires a simulated NOR chip through spibus and probes it against
// the loaded device database.
func (c *commonFlags) attachNOR() (*nor.Flash, *devdb.Store, error) {
	idBytes, err := c.idBytes()
	if err != nil {
		return nil, nil, err
	}

	store, err := devdb.NewStore(c.dbDirs...)
	if err != nil {
		return nil, nil, err
	}

	ctrl := simctl.NewNOR(int(c.simSize), idBytes)
	bus, err := spibus.Attach(ctrl, 1)
	if err != nil {
		return nil, nil, err
	}

	flash := nor.New(bus)
	if err := flash.Probe(cmdCtx(), store.NORParts()); err != nil {
		return nil, nil, fmt.Errorf("probe: %w", err)
	}
	return flash, store, nil
}

// nandSimFlags extends commonFlags with the geometry a simulated NAND chip
// needs, since (unlike NOR) geometry cannot be deduced from SFDP.
type nandSimFlags struct {
	commonFlags
	pageSize      int
	oobSize       int
	pagesPerBlock int
	blockCount    int
	eccStrength   int
}

func (c *nandSimFlags) register(cmd *cobra.Command) {
	c.commonFlags.register(cmd)
	cmd.Flags().IntVar(&c.pageSize, "sim-page-size", 2048, "simulated NAND page size")
	cmd.Flags().IntVar(&c.oobSize, "sim-oob-size", 64, "simulated NAND OOB size")
	cmd.Flags().IntVar(&c.pagesPerBlock, "sim-pages-per-block", 64, "simulated NAND pages per block")
	cmd.Flags().IntVar(&c.blockCount, "sim-block-count", 1024, "simulated NAND block count")
	cmd.Flags().IntVar(&c.eccStrength, "sim-ecc-strength", 1, "simulated on-die ECC correction strength, in bits per step")
}

func (c *nandSimFlags) attachNAND() (*nand.Flash, *devdb.Store, error) {
	idBytes, err := c.idBytes()
	if err != nil {
		return nil, nil, err
	}

	store, err := devdb.NewStore(c.dbDirs...)
	if err != nil {
		return nil, nil, err
	}

	ctrl := simctl.NewNAND(c.pageSize, c.oobSize, c.pagesPerBlock, c.blockCount, c.eccStrength, idBytes)
	bus, err := spibus.Attach(ctrl, 1)
	if err != nil {
		return nil, nil, err
	}

	flash := nand.New(bus)
	if err := flash.Probe(cmdCtx(), store.NANDParts()); err != nil {
		return nil, nil, fmt.Errorf("probe: %w", err)
	}
	return flash, store, nil
}

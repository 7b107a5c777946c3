// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package devdb implements the JSON-described per-part device database
// (spec §4.12, component C12): layered directory search, longest-ID-prefix
// matching, and decoding into nor.Part/nand.Part.
//
// Grounded on the teacher's drivedb/drivedb.go (load a database, look up an
// entry by model) and cmd/drivedb/drivedb.go (typed decoding of a
// loosely-typed preset source into Go structs) — cgo/TOML/YAML are replaced
// with github.com/goccy/go-json per SPEC_FULL §1, and preset-token parsing
// is replaced with github.com/mitchellh/mapstructure decoding of
// vendor_flags-shaped objects (see vendorflags.go).
package devdb

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/erase"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/nor"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/status"
)

// Store is a layered device database: later directories passed to NewStore
// override earlier ones by part name (spec §4.12 expansion "layered override
// directories", the idiomatic way to let a vendor-extension directory sit beside the
// built-in one without forking it).
type Store struct {
	norParts  []*nor.Part
	nandParts []*nand.Part
}

// NewStore loads every *.json file from each of dirs, in order, and
// returns the merged database. A later directory's entry for the same
// part name replaces an earlier one; entries are otherwise appended.
func NewStore(dirs ...string) (*Store, error) {
	s := &Store{}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, status.Wrap(status.DeviceIOError, "devdb.NewStore: read dir", err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			path := filepath.Join(dir, name)
			if err := s.loadFile(path); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *Store) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return status.Wrap(status.DeviceIOError, "devdb.loadFile: read", err)
	}

	var f jsonFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return status.Wrap(status.InvalidParameter, "devdb.loadFile: "+path, err)
	}

	logrus.WithFields(logrus.Fields{
		"file": path,
		"nor":  len(f.NOR),
		"nand": len(f.NAND),
	}).Debug("devdb: loaded database file")

	for i := range f.NOR {
		part, err := jsonToNORPart(&f.NOR[i])
		if err != nil {
			return status.Wrap(status.InvalidParameter, "devdb.loadFile: "+path, err)
		}
		s.upsertNOR(part)
	}
	for i := range f.NAND {
		part, err := jsonToNANDPart(&f.NAND[i])
		if err != nil {
			return status.Wrap(status.InvalidParameter, "devdb.loadFile: "+path, err)
		}
		s.upsertNAND(part)
	}
	return nil
}

func (s *Store) upsertNOR(p *nor.Part) {
	for i, existing := range s.norParts {
		if existing.Name == p.Name {
			s.norParts[i] = p
			return
		}
	}
	s.norParts = append(s.norParts, p)
}

func (s *Store) upsertNAND(p *nand.Part) {
	for i, existing := range s.nandParts {
		if existing.Name == p.Name {
			s.nandParts[i] = p
			return
		}
	}
	s.nandParts = append(s.nandParts, p)
}

// NORParts returns every loaded SPI-NOR candidate, suitable as input to
// nor.Flash.Probe.
func (s *Store) NORParts() []*nor.Part { return s.norParts }

// NANDParts returns every loaded SPI-NAND candidate, suitable as input to
// nand.Flash.Probe.
func (s *Store) NANDParts() []*nand.Part { return s.nandParts }

func parseID(hexStr string) (id.ID, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return id.ID{}, status.Wrap(status.InvalidParameter, "devdb.parseID: "+hexStr, err)
	}
	return id.New(b...), nil
}

func parseIDs(hexStrs []string) ([]id.ID, error) {
	out := make([]id.ID, 0, len(hexStrs))
	for _, h := range hexStrs {
		i, err := parseID(h)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

var ioTypeNames = map[string]sfdp.IOType{
	"1-1-1": sfdp.IO111,
	"1-1-2": sfdp.IO112,
	"1-2-2": sfdp.IO122,
	"2-2-2": sfdp.IO222,
	"1-1-4": sfdp.IO114,
	"1-4-4": sfdp.IO144,
	"4-4-4": sfdp.IO444,
	"1-1-8": sfdp.IO118,
	"1-8-8": sfdp.IO188,
	"8-8-8": sfdp.IO888,
}

func parseIOType(s string) (sfdp.IOType, error) {
	if s == "" {
		return sfdp.IO111, nil
	}
	t, ok := ioTypeNames[s]
	if !ok {
		return 0, status.New(status.InvalidParameter, "devdb: unknown io_type "+s)
	}
	return t, nil
}

var qeTypeNames = map[string]sfdp.QEType{
	"":                      sfdp.QENone,
	"none":                  sfdp.QENone,
	"sr2-bit1-joint-write":  sfdp.QESR2Bit1JointWrite,
	"sr1-bit6":              sfdp.QESR1Bit6,
	"sr2-bit7":              sfdp.QESR2Bit7,
	"sr2-bit1-direct-write": sfdp.QESR2Bit1DirectWrite,
}

var qpiSeqNames = map[string]sfdp.QPISeqType{
	"":      sfdp.QPISeqNone,
	"none":  sfdp.QPISeqNone,
	"38h":   sfdp.QPISeq38h,
	"f5h":   sfdp.QPISeqF5h,
}

var a4bTypeNames = map[string]nor.A4BType{
	"":                 nor.A4BNone,
	"none":             nor.A4BNone,
	"opcode-en4b":      nor.A4BOpcodeEN4B,
	"extended-addr-reg": nor.A4BExtendedAddrReg,
	"bank-reg":         nor.A4BBankReg,
	"opcode-set4b":     nor.A4BOpcodeSet4B,
	"always-4b":        nor.A4BAlways4B,
}

func parseOpEntries(entries []jsonOpEntry) ([]nor.OpEntry, error) {
	out := make([]nor.OpEntry, 0, len(entries))
	for _, e := range entries {
		t, err := parseIOType(e.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, nor.OpEntry{Type: t, Opcode: e.Opcode, NDummy: e.NDummy, NMode: e.NMode})
	}
	return out, nil
}

func parseRegField(f jsonRegField) nor.RegField {
	return nor.RegField{Name: f.Name, Shift: f.Shift, Width: f.Width, Volatile: f.Volatile}
}

func parseNORFlags(names []string) nor.PartFlag {
	var flags nor.PartFlag
	for _, n := range names {
		switch n {
		case "no_sfdp":
			flags |= nor.FlagNoSFDP
		case "sfdp_4b_mode":
			flags |= nor.FlagSFDP4BMode
		case "sr_volatile":
			flags |= nor.FlagSRVolatile
		case "qpi_pre_sfdp_fixup":
			flags |= nor.FlagQPIPreSFDPFixup
		}
	}
	return flags
}

func parseA4BFlags(names []string) nor.A4BFlag {
	var flags nor.A4BFlag
	for _, n := range names {
		switch n {
		case "wren":
			flags |= nor.A4BFlagWREN
		case "always":
			flags |= nor.A4BFlagAlways
		}
	}
	return flags
}

// jsonToNORPart converts one database entry into a nor.Part, building its
// erase.Plan types/regions, op tables, and vendor-flag word.
func jsonToNORPart(j *jsonNORPart) (*nor.Part, error) {
	ids, err := parseIDs(j.IDs)
	if err != nil {
		return nil, err
	}

	var eraseTypes [4]erase.Type
	for i, et := range j.EraseTypes {
		eraseTypes[i] = erase.Type{Size: et.Size, Opcode3B: et.Opcode3B, Opcode4B: et.Opcode4B, MaxMs: et.MaxMs}
	}

	regions := make([]erase.Region, 0, len(j.Regions))
	for _, r := range j.Regions {
		regions = append(regions, erase.Region{Base: r.Base, Size: r.Size, EraseTypeMask: r.EraseTypeMask})
	}

	ops3B, err := parseOpEntries(j.Ops3B)
	if err != nil {
		return nil, err
	}
	ops4B, err := parseOpEntries(j.Ops4B)
	if err != nil {
		return nil, err
	}

	qeType, ok := qeTypeNames[j.QEType]
	if !ok {
		return nil, status.New(status.InvalidParameter, "devdb: unknown qe_type "+j.QEType)
	}
	qpiEn, ok := qpiSeqNames[j.QPIEnType]
	if !ok {
		return nil, status.New(status.InvalidParameter, "devdb: unknown qpi_en_type "+j.QPIEnType)
	}
	qpiDis, ok := qpiSeqNames[j.QPIDisType]
	if !ok {
		return nil, status.New(status.InvalidParameter, "devdb: unknown qpi_dis_type "+j.QPIDisType)
	}
	a4bType, ok := a4bTypeNames[j.A4BType]
	if !ok {
		return nil, status.New(status.InvalidParameter, "devdb: unknown a4b_type "+j.A4BType)
	}

	var otp *nor.OTPInfo
	if j.OTP != nil {
		otp = &nor.OTPInfo{
			StartIndex:  j.OTP.StartIndex,
			Count:       j.OTP.Count,
			Size:        j.OTP.Size,
			ReadOpcode:  j.OTP.ReadOpcode,
			ProgOpcode:  j.OTP.ProgOpcode,
			EraseOpcode: j.OTP.EraseOpcode,
			LockField:   parseRegField(j.OTP.LockField),
		}
	}

	wpRanges := make([]nor.WPRange, 0, len(j.WPRanges))
	for _, r := range j.WPRanges {
		wpRanges = append(wpRanges, nor.WPRange{Base: r.Base, Size: r.Size, FieldValue: r.FieldValue})
	}

	regFields := make([]nor.RegField, 0, len(j.RegFields))
	for _, f := range j.RegFields {
		regFields = append(regFields, parseRegField(f))
	}

	vendorFlags, err := decodeVendorFlags(j.VendorFlags)
	if err != nil {
		return nil, err
	}

	return &nor.Part{
		Name:   j.Name,
		Vendor: j.Vendor,
		IDs:    ids,
		Size:   j.Size,

		EraseTypes: eraseTypes,
		Regions:    regions,

		Ops3B: ops3B,
		Ops4B: ops4B,

		QEType:     qeType,
		QPIEnType:  qpiEn,
		QPIDisType: qpiDis,

		A4BType:  a4bType,
		A4BFlags: parseA4BFlags(j.A4BFlags),

		SoftResetCaps: sfdp.SoftResetCaps{
			OpcodeF0h:    j.SoftReset.OpcodeF0h,
			Opcode66h99h: j.SoftReset.Opcode66h99h,
		},

		Flags: parseNORFlags(j.Flags),

		OTP: otp,

		WPRanges:  wpRanges,
		WPField:   parseRegField(j.WPField),
		RegFields: regFields,

		VendorFlags: vendorFlags,

		PageSize: j.PageSize,

		NumDies: j.NumDies,
		DieSize: j.DieSize,
	}, nil
}

func parseNANDFlags(names []string) nand.PartFlag {
	var flags nand.PartFlag
	for _, n := range names {
		switch n {
		case "quad_capable":
			flags |= nand.FlagQuadCapable
		case "continuous_read":
			flags |= nand.FlagContinuousRead
		case "on_die_ecc":
			flags |= nand.FlagOnDieECC
		}
	}
	return flags
}

// buildECC returns the ecc.Engine constructor a nand.Part binds, selected
// by the database entry's ecc.kind (spec §4.9's on-die/external split).
func buildECC(j *jsonECC, org memorg.Org) (func() ecc.Engine, error) {
	switch j.Kind {
	case "", "ondie":
		strength := j.Strength
		stepSize := j.StepSize
		if stepSize == 0 {
			stepSize = 512
		}
		return func() ecc.Engine {
			return &ecc.OnDie{
				PageSize: org.PageSize,
				OOBSize:  org.OOBSize,
				Strength: strength,
				StepSize: stepSize,
			}
		}, nil
	case "external":
		bbmSwap := j.BBMSwap
		pageSize, spareSize := org.PageSize, org.OOBSize
		return func() ecc.Engine {
			eng, err := ecc.NewExternal(pageSize, spareSize, bbmSwap)
			if err != nil {
				// A database entry that fails to build its declared ECC
				// engine is a database defect; the nil engine returned
				// here makes Probe fail with its "part declares no ECC
				// binding" error.
				return nil
			}
			return eng
		}, nil
	default:
		return nil, status.New(status.InvalidParameter, "devdb: unknown ecc.kind "+j.Kind)
	}
}

// jsonToNANDPart converts one database entry into a nand.Part.
func jsonToNANDPart(j *jsonNANDPart) (*nand.Part, error) {
	ids, err := parseIDs(j.IDs)
	if err != nil {
		return nil, err
	}

	org := memorg.Org{
		NumChips:      j.Org.NumChips,
		LUNsPerCS:     j.Org.LUNsPerCS,
		BlocksPerLUN:  j.Org.BlocksPerLUN,
		PagesPerBlock: j.Org.PagesPerBlock,
		PageSize:      j.Org.PageSize,
		OOBSize:       j.Org.OOBSize,
		PlanesPerLUN:  j.Org.PlanesPerLUN,
	}

	readIO, err := parseIOType(j.ReadIO)
	if err != nil {
		return nil, err
	}
	progIO, err := parseIOType(j.ProgramIO)
	if err != nil {
		return nil, err
	}

	eccCtor, err := buildECC(&j.ECC, org)
	if err != nil {
		return nil, err
	}

	return &nand.Part{
		Name:   j.Name,
		Vendor: j.Vendor,
		IDs:    ids,

		Org: org,

		NumDies: j.NumDies,

		ECC: eccCtor,

		ReadIO:    readIO,
		ProgramIO: progIO,

		Flags: parseNANDFlags(j.Flags),

		UID: nand.UIDInfo{Page: j.UID.Page, Size: j.UID.Size, Repeats: j.UID.Repeats},

		BBMPages:     j.BBMPages,
		BBMPositions: j.BBMPositions,
		BBMWholePage: j.BBMWholePage,
	}, nil
}

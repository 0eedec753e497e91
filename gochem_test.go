/*
 * gochem_test.go, part of gxtb.
 *
 * Copyright 2012 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package chem

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	v3 "github.com/rmera/gxtb/v3"
)

//water returns a water molecule, with the oxygen given by atomic number and
//the hydrogens by symbol.
func water(Te *testing.T) *Molecule {
	coords, err := v3.NewMatrix([]float64{
		0.0, 0.0, 0.0,
		0.0, 0.757, 0.586,
		0.0, -0.757, 0.586,
	})
	if err != nil {
		Te.Fatal(err)
	}
	top, err := NewTopology([]*Atom{{Z: 8}, {Symbol: "H"}, {Symbol: "h"}})
	if err != nil {
		Te.Fatal(err)
	}
	mol, err := NewMolecule(coords, top)
	if err != nil {
		Te.Fatal(err)
	}
	return mol
}

func sameMolecule(Te *testing.T, a, b *Molecule, tol float64) {
	Te.Helper()
	if a.Len() != b.Len() {
		Te.Fatalf("atom counts differ: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		if a.Atom(i).Symbol != b.Atom(i).Symbol || a.Atom(i).Z != b.Atom(i).Z {
			Te.Errorf("atom %d: %s(%d) vs %s(%d)", i, a.Atom(i).Symbol, a.Atom(i).Z, b.Atom(i).Symbol, b.Atom(i).Z)
		}
		va, vb := a.Coords.Vec(i), b.Coords.Vec(i)
		for j := range va {
			if math.Abs(va[j]-vb[j]) > tol {
				Te.Errorf("atom %d coordinate %d: %f vs %f", i, j, va[j], vb[j])
			}
		}
	}
}

func TestResolve(Te *testing.T) {
	mol := water(Te)
	if err := mol.Resolve(); err != nil {
		Te.Fatal(err)
	}
	if mol.Atom(0).Symbol != "O" || mol.Atom(2).Z != 1 || mol.Atom(2).Symbol != "H" {
		Te.Errorf("elements not resolved: %+v %+v", mol.Atom(0), mol.Atom(2))
	}
	if mol.Electrons() != 10 {
		Te.Errorf("water should have 10 electrons, got %d", mol.Electrons())
	}
	if mol.Formula() != "OH2" {
		Te.Errorf("unexpected formula %s", mol.Formula())
	}
	top, _ := NewTopology([]*Atom{{Symbol: "C"}, {Symbol: "Xx"}})
	err := top.Resolve()
	var cerr Error
	if !errors.As(err, &cerr) {
		Te.Fatalf("expected a chem Error, got %v", err)
	}
	if d := cerr.Decorations(); len(d) != 2 || d[0] != "Atom/Resolve" || d[1] != "Topology/Resolve: atom 1" {
		Te.Errorf("unexpected decorations %v", d)
	}
	for _, bad := range []*Atom{{Symbol: "Xx"}, {Z: 200}, {}, {Symbol: "C", Z: 7}} {
		if err := bad.Resolve(); err == nil {
			Te.Errorf("atom %+v should not resolve", bad)
		}
	}
	if z, ok := ZFromSymbol("CL"); !ok || z != 17 {
		Te.Errorf("CL should be chlorine, got %d", z)
	}
	if s, ok := SymbolFromZ(103); !ok || s != "Lr" {
		Te.Errorf("103 should be Lr, got %s", s)
	}
}

func TestXYZRoundTrip(Te *testing.T) {
	mol := water(Te)
	var buf bytes.Buffer
	if err := XYZWrite(&buf, mol.Coords, mol); err != nil {
		Te.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "3") {
		Te.Errorf("the first line should be the atom count: %q", buf.String())
	}
	mol2, err := XYZRead(&buf)
	if err != nil {
		Te.Fatal(err)
	}
	mol.Resolve()
	sameMolecule(Te, mol, mol2, 1e-9)
}

func TestTMCoordRoundTrip(Te *testing.T) {
	mol := water(Te)
	var buf bytes.Buffer
	if err := TMCoordWrite(&buf, mol.Coords, mol); err != nil {
		Te.Fatal(err)
	}
	text := buf.String()
	if !strings.HasPrefix(text, "$coord\n") || !strings.HasSuffix(text, "$end\n") {
		Te.Errorf("not a $coord block: %q", text)
	}
	if !strings.Contains(text, " o\n") {
		Te.Errorf("symbols should be lower case: %q", text)
	}
	mol2, err := TMCoordRead(strings.NewReader(text))
	if err != nil {
		Te.Fatal(err)
	}
	mol.Resolve()
	sameMolecule(Te, mol, mol2, 1e-9)
	//The hydrogens are written in Bohr.
	if y := fmt.Sprintf("%.8f", mol.Coords.At(1, 1)*A2Bohr); !strings.Contains(text, y) || y != "1.43052257" {
		Te.Errorf("coordinates should be in Bohr (%s), got %q", y, text)
	}
}

func TestReadErrors(Te *testing.T) {
	bad := map[string]string{
		"empty":     "",
		"zero":      "0\n\n",
		"truncated": "3\n\nO 0 0 0\nH 0 0 1\n",
		"notanum":   "3\n\nO 0 0 zero\nH 0 0 1\nH 0 1 0\n",
		"element":   "1\n\nQq 0 0 0\n",
	}
	for name, content := range bad {
		if _, err := XYZRead(strings.NewReader(content)); err == nil {
			Te.Errorf("%s: XYZRead should fail", name)
		}
	}
	if _, err := TMCoordRead(strings.NewReader("$coord\n 0 0 0 o\n")); err == nil {
		Te.Error("an unterminated $coord block should fail")
	}
	if _, err := TMCoordRead(strings.NewReader("$coord\n$end\n")); err == nil {
		Te.Error("an empty $coord block should fail")
	}
	if err := XYZWrite(new(bytes.Buffer), nil, &Topology{}); err == nil {
		Te.Error("writing no atoms should fail")
	}
}

func TestFilesAndFormats(Te *testing.T) {
	dir := Te.TempDir()
	mol := water(Te)
	mol.Resolve()
	names := map[string]CoordFormat{
		"water.xyz":   XYZFormat,
		"coord":       TMFormat,
		"water.tmol":  TMFormat,
		"water.coord": TMFormat,
	}
	for name, format := range names {
		if f := CoordFormatFromName(name); f != format {
			Te.Errorf("%s should be %s, got %s", name, format, f)
		}
		path := filepath.Join(dir, name)
		if err := CoordFileWrite(path, format, mol.Coords, mol); err != nil {
			Te.Fatal(err)
		}
		mol2, err := CoordFileRead(path)
		if err != nil {
			Te.Fatal(err)
		}
		sameMolecule(Te, mol, mol2, 1e-9)
	}
	if f := CoordFormatFromName("water.pdb"); f != UnknownFormat {
		Te.Errorf("pdb is not a g-xTB format, got %s", f)
	}
	if _, err := XYZFileRead(filepath.Join(dir, "nothere.xyz")); err == nil {
		Te.Error("reading a missing file should fail")
	}
}

func TestXYZCompressed(Te *testing.T) {
	mol := water(Te)
	mol.Resolve()
	path := filepath.Join(Te.TempDir(), "water.xyz.zst")
	f, err := os.Create(path)
	if err != nil {
		Te.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		Te.Fatal(err)
	}
	if err := XYZWrite(enc, mol.Coords, mol); err != nil {
		Te.Fatal(err)
	}
	enc.Close()
	f.Close()
	if CoordFormatFromName(path) != XYZFormat {
		Te.Errorf("%s should be recognized as xyz", path)
	}
	mol2, err := XYZFileRead(path)
	if err != nil {
		Te.Fatal(err)
	}
	sameMolecule(Te, mol, mol2, 1e-9)
}

func TestCorrupted(Te *testing.T) {
	if err := water(Te).Corrupted(); err != nil {
		Te.Errorf("water should be fine: %v", err)
	}
	cases := map[string]*Molecule{
		"nil":       nil,
		"no atoms":  {Topology: &Topology{}, Coords: v3.Zeros(1)},
		"nil atom":  {Topology: &Topology{Atoms: []*Atom{{Symbol: "O"}, nil}}, Coords: v3.Zeros(2)},
		"count":     {Topology: &Topology{Atoms: []*Atom{{Symbol: "O"}}}, Coords: v3.Zeros(2)},
		"no coords": {Topology: &Topology{Atoms: []*Atom{{Symbol: "O"}}}},
	}
	for name, mol := range cases {
		if err := mol.Corrupted(); err == nil {
			Te.Errorf("%s: should be corrupted", name)
		}
	}
}

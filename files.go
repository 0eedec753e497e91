/*
 * files.go, part of gxtb.
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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package chem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	v3 "github.com/rmera/gxtb/v3"
)

//CoordFormat identifies one of the coordinate file formats accepted by g-xTB.
type CoordFormat int

const (
	UnknownFormat CoordFormat = iota
	XYZFormat                 //atom count, comment, "symbol x y z" rows in Angstrom
	TMFormat                  //Turbomole $coord block, "x y z symbol" rows in Bohr
)

func (F CoordFormat) String() string {
	switch F {
	case XYZFormat:
		return "xyz"
	case TMFormat:
		return "coord"
	default:
		return "unknown"
	}
}

//CoordFormatFromName guesses the format of a coordinate file from its name.
//*.xyz (and *.xyz.zst) are XYZ files, while files named "coord", or with
//the extensions .coord or .tmol, are Turbomole files.
func CoordFormatFromName(name string) CoordFormat {
	base := strings.ToLower(filepath.Base(name))
	base = strings.TrimSuffix(base, ".zst")
	switch {
	case strings.HasSuffix(base, ".xyz"):
		return XYZFormat
	case base == "coord", strings.HasSuffix(base, ".coord"), strings.HasSuffix(base, ".tmol"):
		return TMFormat
	}
	return UnknownFormat
}

//openMaybeCompressed opens filename, transparently decompressing it if the name
//ends in .zst. The returned closer must be called when done.
func openMaybeCompressed(filename string) (io.Reader, func(), error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".zst") {
		return f, func() { f.Close() }, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return dec, func() { dec.Close(); f.Close() }, nil
}

//CoordFileRead reads a coordinate file in the format guessed from its name.
func CoordFileRead(filename string) (*Molecule, error) {
	switch CoordFormatFromName(filename) {
	case XYZFormat:
		return XYZFileRead(filename)
	case TMFormat:
		return TMCoordFileRead(filename)
	}
	return nil, Error{"can't guess the format of the coordinate file", filename, []string{"CoordFileRead"}, true}
}

//XYZFileRead reads an xyz file (optionally zstd-compressed, with a .zst extension)
//and returns a Molecule with the first structure in the file.
func XYZFileRead(xyzname string) (*Molecule, error) {
	r, closer, err := openMaybeCompressed(xyzname)
	if err != nil {
		return nil, Error{fmt.Sprintf("unable to open file: %s", err.Error()), xyzname, []string{"XYZFileRead"}, true}
	}
	defer closer()
	mol, err := XYZRead(r)
	if err != nil {
		if e, ok := err.(Error); ok {
			e.filename = xyzname
			err = e
		}
		return nil, errDecorate(err, "XYZFileRead")
	}
	return mol, nil
}

//XYZRead reads the first structure from an XYZ stream. The element of each atom
//may be given either as a symbol or as an atomic number. Coordinates are in Angstrom.
func XYZRead(r io.Reader) (*Molecule, error) {
	errid := "XYZRead"
	scanner := bufio.NewScanner(r)
	natoms := -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, Error{fmt.Sprintf("ill formatted XYZ file, first line should be the number of atoms, got %q", line), "", []string{errid}, true}
		}
		natoms = n
		break
	}
	if natoms < 0 {
		return nil, Error{"empty XYZ file", "", []string{errid}, true}
	}
	if natoms == 0 {
		return nil, Error{"XYZ file contains no atoms", "", []string{errid}, true}
	}
	scanner.Scan() //The comment line, we don't care about it.
	atoms := make([]*Atom, 0, natoms)
	coords := make([]float64, 0, natoms*3)
	for i := 0; i < natoms; i++ {
		if !scanner.Scan() {
			return nil, Error{fmt.Sprintf("expected %d atoms, found %d", natoms, i), "", []string{errid}, true}
		}
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, Error{fmt.Sprintf("line for atom %d ill formed: %q", i+1, line), "", []string{errid}, true}
		}
		at := &Atom{Id: i + 1}
		if z, err := strconv.Atoi(fields[0]); err == nil {
			at.Z = z
		} else {
			at.Symbol = fields[0]
		}
		at.Name = fields[0]
		for j := 1; j <= 3; j++ {
			c, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, Error{fmt.Sprintf("can't parse coordinate %d of atom %d: %q", j, i+1, fields[j]), "", []string{errid}, true}
			}
			coords = append(coords, c)
		}
		atoms = append(atoms, at)
	}
	if err := scanner.Err(); err != nil {
		return nil, Error{err.Error(), "", []string{errid}, true}
	}
	top, _ := NewTopology(atoms)
	if err := top.Resolve(); err != nil {
		return nil, errDecorate(err, errid)
	}
	mcoords, err := v3.NewMatrix(coords)
	if err != nil {
		return nil, Error{err.Error(), "", []string{errid}, true}
	}
	return NewMolecule(mcoords, top)
}

//XYZFileWrite writes the coordinates coords and the atoms in atoms in an XYZ file with name xyzname which will
//be created for that. If the file exist it will be overwritten.
func XYZFileWrite(xyzname string, coords *v3.Matrix, atoms Atomer) error {
	out, err := os.Create(xyzname)
	if err != nil {
		return Error{err.Error(), xyzname, []string{"XYZFileWrite"}, true}
	}
	defer out.Close()
	if err := XYZWrite(out, coords, atoms); err != nil {
		return errDecorate(err, "XYZFileWrite")
	}
	return out.Close()
}

//XYZWrite writes the coordinates (in Angstrom) and atoms in XYZ format to out.
func XYZWrite(out io.Writer, coords *v3.Matrix, atoms Atomer) error {
	errid := "XYZWrite"
	if err := checkWritable(coords, atoms); err != nil {
		return errDecorate(err, errid)
	}
	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "%-4d\n\n", atoms.Len())
	for i := 0; i < atoms.Len(); i++ {
		s, err := atomSymbol(atoms.Atom(i))
		if err != nil {
			return errDecorate(err, errid)
		}
		c := coords.Vec(i)
		if _, err := fmt.Fprintf(w, "%-2s %20.12f %20.12f %20.12f\n", s, c[0], c[1], c[2]); err != nil {
			return Error{err.Error(), "", []string{errid}, true}
		}
	}
	if err := w.Flush(); err != nil {
		return Error{err.Error(), "", []string{errid}, true}
	}
	return nil
}

//checkWritable makes sure there is something to write and that atoms
//and coordinates agree.
func checkWritable(coords *v3.Matrix, atoms Atomer) error {
	if atoms == nil || coords == nil || atoms.Len() == 0 {
		return Error{"no atoms or coordinates to write", "", []string{"checkWritable"}, true}
	}
	if coords.NVecs() != atoms.Len() {
		return Error{fmt.Sprintf("%d atoms but %d coordinates", atoms.Len(), coords.NVecs()), "", []string{"checkWritable"}, true}
	}
	return nil
}

//atomSymbol returns the element symbol of at, resolving it from the atomic number
//if needed. The atom is not modified.
func atomSymbol(at *Atom) (string, error) {
	if at == nil {
		return "", Error{"nil atom", "", []string{"atomSymbol"}, true}
	}
	c := at.Copy()
	if err := c.Resolve(); err != nil {
		return "", err
	}
	return c.Symbol, nil
}

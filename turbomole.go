/*
 * turbomole.go, part of gxtb.
 *
 * Copyright 2016 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/rmera/gxtb/v3"
)

//TMCoordFileRead reads a Turbomole coord file. The coordinates
//are converted from Bohr to Angstrom.
func TMCoordFileRead(filename string) (*Molecule, error) {
	r, closer, err := openMaybeCompressed(filename)
	if err != nil {
		return nil, Error{fmt.Sprintf("unable to open file: %s", err.Error()), filename, []string{"TMCoordFileRead"}, true}
	}
	defer closer()
	mol, err := TMCoordRead(r)
	if err != nil {
		if e, ok := err.(Error); ok {
			e.filename = filename
			err = e
		}
		return nil, errDecorate(err, "TMCoordFileRead")
	}
	return mol, nil
}

//TMCoordRead reads the $coord block of a Turbomole-style stream.
//Each row in the block is "x y z element", in Bohr, optionally followed by
//an "f" (frozen) flag, which is ignored. The block ends at the next line starting with "$".
func TMCoordRead(r io.Reader) (*Molecule, error) {
	errid := "TMCoordRead"
	scanner := bufio.NewScanner(r)
	inblock := false
	closed := false
	atoms := make([]*Atom, 0, 10)
	coords := make([]float64, 0, 30)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inblock {
			if strings.HasPrefix(line, "$coord") {
				inblock = true
			}
			continue
		}
		if strings.HasPrefix(line, "$") {
			closed = true
			break
		}
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, Error{fmt.Sprintf("ill formed line in $coord block: %q", line), "", []string{errid}, true}
		}
		for j := 0; j < 3; j++ {
			c, err := strconv.ParseFloat(strings.Replace(fields[j], "D", "E", 1), 64)
			if err != nil {
				return nil, Error{fmt.Sprintf("can't parse coordinate in line %q", line), "", []string{errid}, true}
			}
			coords = append(coords, c*Bohr2A)
		}
		atoms = append(atoms, &Atom{Id: len(atoms) + 1, Name: fields[3], Symbol: fields[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, Error{err.Error(), "", []string{errid}, true}
	}
	if !inblock {
		return nil, Error{"no $coord block found", "", []string{errid}, true}
	}
	if !closed {
		return nil, Error{"$coord block is not terminated", "", []string{errid}, true}
	}
	if len(atoms) == 0 {
		return nil, Error{"$coord block contains no atoms", "", []string{errid}, true}
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

//TMCoordFileWrite writes a Turbomole coord file with the given coordinates (in Angstrom)
//and atoms. If the file exist it will be overwritten.
func TMCoordFileWrite(filename string, coords *v3.Matrix, atoms Atomer) error {
	out, err := os.Create(filename)
	if err != nil {
		return Error{err.Error(), filename, []string{"TMCoordFileWrite"}, true}
	}
	defer out.Close()
	if err := TMCoordWrite(out, coords, atoms); err != nil {
		return errDecorate(err, "TMCoordFileWrite")
	}
	return out.Close()
}

//TMCoordWrite writes a $coord block, converting the coordinates from Angstrom to Bohr.
//Turbomole expects element symbols in lower case.
func TMCoordWrite(out io.Writer, coords *v3.Matrix, atoms Atomer) error {
	errid := "TMCoordWrite"
	if err := checkWritable(coords, atoms); err != nil {
		return errDecorate(err, errid)
	}
	w := bufio.NewWriter(out)
	fmt.Fprintln(w, "$coord")
	for i := 0; i < atoms.Len(); i++ {
		s, err := atomSymbol(atoms.Atom(i))
		if err != nil {
			return errDecorate(err, errid)
		}
		c := coords.Vec(i)
		fmt.Fprintf(w, "%22.14f %22.14f %22.14f      %s\n", c[0]*A2Bohr, c[1]*A2Bohr, c[2]*A2Bohr, strings.ToLower(s))
	}
	fmt.Fprintln(w, "$end")
	if err := w.Flush(); err != nil {
		return Error{err.Error(), "", []string{errid}, true}
	}
	return nil
}

//CoordFileWrite writes coords and atoms to filename in the given format.
func CoordFileWrite(filename string, format CoordFormat, coords *v3.Matrix, atoms Atomer) error {
	switch format {
	case XYZFormat:
		return XYZFileWrite(filename, coords, atoms)
	case TMFormat:
		return TMCoordFileWrite(filename, coords, atoms)
	}
	return Error{fmt.Sprintf("unsupported coordinate format %s", format), filename, []string{"CoordFileWrite"}, true}
}

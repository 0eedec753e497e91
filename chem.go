/*
 * chem.go, part of gxtb.
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
	"fmt"
	"strings"

	v3 "github.com/rmera/gxtb/v3"
)

//Atom contains the information of one atom, except for the coordinates, which will be in a matrix.
//The element can be given either by Symbol or by atomic number (Z). Resolve fills in
//whichever is missing.
type Atom struct {
	Name   string
	Id     int
	Tag    int //Just added this for something that someone might want to keep that is not a float.
	Symbol string
	Z      int
}

//Atom methods

//Copy returns a copy of the Atom object.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic("Attempted to copy a nil atom")
	}
	Newat := new(Atom)
	*Newat = *A
	return Newat
}

//Resolve makes the Symbol and Z of the atom consistent. If only one of them
//is given, the other is filled. It returns an error if the element can't be
//recognized, or if symbol and atomic number disagree.
func (A *Atom) Resolve() error {
	errid := "Atom/Resolve"
	if A == nil {
		return Error{"nil atom", "", []string{errid}, true}
	}
	switch {
	case A.Symbol == "" && A.Z == 0:
		return Error{fmt.Sprintf("atom %d (%s) has no element identity", A.Id, A.Name), "", []string{errid}, true}
	case A.Symbol == "":
		s, ok := SymbolFromZ(A.Z)
		if !ok {
			return Error{fmt.Sprintf("unknown atomic number %d", A.Z), "", []string{errid}, true}
		}
		A.Symbol = s
	default:
		z, ok := ZFromSymbol(A.Symbol)
		if !ok {
			return Error{fmt.Sprintf("unknown element symbol %q", A.Symbol), "", []string{errid}, true}
		}
		if A.Z != 0 && A.Z != z {
			return Error{fmt.Sprintf("symbol %s doesn't match atomic number %d", A.Symbol, A.Z), "", []string{errid}, true}
		}
		A.Z = z
		A.Symbol = symbols[z]
	}
	return nil
}

/*****Topology type***/

//Topology contains information about a molecule which is not expected to change in time (i.e. everything except for coordinates)
type Topology struct {
	Atoms []*Atom
}

//NewTopology returns a topology with the given atoms. It returns error
//if one of the atoms is nil. It doesn't resolve element identities.
func NewTopology(ats []*Atom) (*Topology, error) {
	for i, v := range ats {
		if v == nil {
			return nil, Error{fmt.Sprintf("atom %d is nil", i), "", []string{"NewTopology"}, true}
		}
	}
	return &Topology{Atoms: ats}, nil
}

/*Topology methods*/

//Atom returns the Atom corresponding to the index i
//of the Atom slice in the Topology. Panics if
//out of range.
func (T *Topology) Atom(i int) *Atom {
	if i >= T.Len() {
		panic("Topology: Requested Atom out of bounds")
	}
	return T.Atoms[i]
}

//Len returns the number of atoms in the topology.
func (T *Topology) Len() int {
	return len(T.Atoms)
}

//Resolve resolves the element identity of every atom in the topology.
func (T *Topology) Resolve() error {
	for i, at := range T.Atoms {
		if err := at.Resolve(); err != nil {
			return errDecorate(err, fmt.Sprintf("Topology/Resolve: atom %d", i))
		}
	}
	return nil
}

//Electrons returns the number of electrons of the neutral system, i.e.
//the sum of the atomic numbers. The atoms must have been resolved.
func (T *Topology) Electrons() int {
	n := 0
	for _, at := range T.Atoms {
		n += at.Z
	}
	return n
}

//Formula returns the chemical formula of the topology, elements
//in order of appearance.
func (T *Topology) Formula() string {
	counts := make(map[string]int)
	order := make([]string, 0, 4)
	for _, at := range T.Atoms {
		if _, ok := counts[at.Symbol]; !ok {
			order = append(order, at.Symbol)
		}
		counts[at.Symbol]++
	}
	var b strings.Builder
	for _, s := range order {
		b.WriteString(s)
		if counts[s] > 1 {
			fmt.Fprintf(&b, "%d", counts[s])
		}
	}
	return b.String()
}

/**Type Molecule**/

//Molecule contains all the info for a molecule in a single state: Atoms
//(in a Topology) and the cartesian coordinates, in Angstrom, as a v3.Matrix.
//The order of the atoms is the order of the rows in the coordinates.
type Molecule struct {
	*Topology
	Coords *v3.Matrix
}

//NewMolecule makes a molecule with the given atoms and coordinates.
//It returns error if the number of atoms and coordinates differ.
func NewMolecule(coords *v3.Matrix, ats *Topology) (*Molecule, error) {
	if ats == nil || coords == nil {
		return nil, Error{"nil topology or coordinates", "", []string{"NewMolecule"}, true}
	}
	if coords.NVecs() != ats.Len() {
		return nil, Error{fmt.Sprintf("%d atoms but %d coordinates", ats.Len(), coords.NVecs()), "", []string{"NewMolecule"}, true}
	}
	return &Molecule{Topology: ats, Coords: coords}, nil
}

//Corrupted checks whether the molecule is complete and consistent,
//i.e. that it has atoms, none of them nil, coordinates, and the same number of each.
//It returns nil if everything is fine.
func (M *Molecule) Corrupted() error {
	if M == nil || M.Topology == nil || M.Coords == nil {
		return Error{"incomplete molecule", "", []string{"Corrupted"}, true}
	}
	if M.Len() == 0 {
		return Error{"molecule has no atoms", "", []string{"Corrupted"}, true}
	}
	if M.Coords.NVecs() != M.Len() {
		return Error{fmt.Sprintf("%d atoms but %d coordinates", M.Len(), M.Coords.NVecs()), "", []string{"Corrupted"}, true}
	}
	for i, at := range M.Atoms {
		if at == nil {
			return Error{fmt.Sprintf("atom %d is nil", i), "", []string{"Corrupted"}, true}
		}
	}
	return nil
}

/*
 * qm.go, part of gxtb.
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

package qm

import (
	"fmt"
	"strings"

	chem "github.com/rmera/gxtb"
	v3 "github.com/rmera/gxtb/v3"
	"gonum.org/v1/gonum/mat"
)

//Units selects the unit system for the results of a calculation.
type Units int

const (
	KcalAngstrom Units = iota //kcal/mol and Angstrom, the goChem default
	EVAngstrom                //eV and Angstrom
	HartreeBohr               //atomic units, as written by g-xTB
)

func (U Units) String() string {
	switch U {
	case KcalAngstrom:
		return "kcal/mol,A"
	case EVAngstrom:
		return "eV,A"
	case HartreeBohr:
		return "Eh,a0"
	}
	return "unknown"
}

//ParseUnits returns the Units named by s. Accepted names are
//"kcal", "ev" and "au" (or "hartree").
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "kcal", "kcal/mol":
		return KcalAngstrom, nil
	case "ev":
		return EVAngstrom, nil
	case "au", "hartree", "atomic":
		return HartreeBohr, nil
	}
	return KcalAngstrom, fmt.Errorf("ParseUnits: unknown unit system %q", s)
}

//energy returns the factor that takes Hartree to the energy unit of U.
func (U Units) energy() float64 {
	switch U {
	case EVAngstrom:
		return chem.H2eV
	case HartreeBohr:
		return 1
	}
	return chem.H2Kcal
}

//length returns the factor that takes Bohr to the length unit of U.
func (U Units) length() float64 {
	if U == HartreeBohr {
		return 1
	}
	return chem.Bohr2A
}

//ChargeState holds the total charge and the number of unpaired electrons
//for a calculation. The Explicit fields tell whether the value was given
//by the user or is the default. The zero value is a neutral system with the
//default number of unpaired electrons.
type ChargeState struct {
	Charge           int
	Unpaired         int
	ExplicitCharge   bool
	ExplicitUnpaired bool
}

//NewChargeState returns the charge state for atoms. A nil charge means neutral.
//A nil unpaired means 0 unpaired electrons if the number of electrons is even, 1 if odd.
//The elements of atoms must be resolved. The chemical feasibility of the result is not checked.
func NewChargeState(atoms chem.Atomer, charge, unpaired *int) (ChargeState, error) {
	var C ChargeState
	if charge != nil {
		C.Charge = *charge
		C.ExplicitCharge = true
	}
	if unpaired != nil {
		C.Unpaired = *unpaired
		C.ExplicitUnpaired = true
	}
	return C.Resolve(electrons(atoms))
}

//DefaultUnpaired returns the number of unpaired electrons that g-xTB assumes
//when no .UHF file is present: 0 for an even number of electrons, 1 for an odd one.
func DefaultUnpaired(nelectrons int) int {
	if nelectrons%2 != 0 {
		return 1
	}
	return 0
}

//Resolve returns a copy of C with the defaults filled in, for a system with
//the given number of electrons in its neutral state.
func (C ChargeState) Resolve(neutralElectrons int) (ChargeState, error) {
	if !C.ExplicitCharge {
		C.Charge = 0
	}
	if !C.ExplicitUnpaired {
		C.Unpaired = DefaultUnpaired(neutralElectrons - C.Charge)
	}
	if C.Unpaired < 0 {
		return C, Error{kind: SerializationError, message: fmt.Sprintf("negative number of unpaired electrons: %d", C.Unpaired), deco: []string{"ChargeState/Resolve"}, critical: true}
	}
	return C, nil
}

//writeCharge tells whether a .CHRG file is needed, i.e. if the charge differs
//from what g-xTB assumes in its absence.
func (C ChargeState) writeCharge() bool {
	return C.Charge != 0
}

//writeUnpaired tells whether a .UHF file is needed for a system with
//neutralElectrons electrons when neutral. C must be resolved.
func (C ChargeState) writeUnpaired(neutralElectrons int) bool {
	return C.Unpaired != DefaultUnpaired(neutralElectrons-C.Charge)
}

func electrons(atoms chem.Atomer) int {
	if atoms == nil {
		return 0
	}
	n := 0
	for i := 0; i < atoms.Len(); i++ {
		n += atoms.Atom(i).Z
	}
	return n
}

//Outputs are the quantities requested from a calculation, in
//addition to the energy, which is always obtained.
type Outputs struct {
	Gradient bool
	Hessian  bool //implies Gradient
	Orbitals bool //a molden file with the orbitals and basis set
}

func (O Outputs) gradient() bool {
	return O.Gradient || O.Hessian
}

//Calc is a calculation request. It is consumed by one Compute call.
type Calc struct {
	Charge  ChargeState
	Outputs Outputs
	Units   Units
}

//Result contains the results of a calculation.
type Result struct {
	Energy      float64
	Gradient    *v3.Matrix    //dE/dx, one row per atom, in the order of the input. nil if not requested.
	Hessian     *mat.SymDense //3N x 3N, nil if not requested.
	OrbitalFile string        //absolute path to the molden file, empty if not requested.
	Units       Units
	Stdout      string //the standard output of g-xTB
	WorkDir     string //the scratch directory, only set if it was kept.
}

//Forces returns the forces on each atom (i.e. minus the gradient), or nil if
//the gradient was not requested.
func (R *Result) Forces() *v3.Matrix {
	if R == nil || R.Gradient == nil {
		return nil
	}
	f := v3.Zeros(R.Gradient.NVecs())
	f.Scale(-1, R.Gradient)
	return f
}

//State is a step in the life of a calculation.
type State int

const (
	Created State = iota
	FilesWritten
	ProcessRunning
	Succeeded
	SerializationFailed
	ExecutionFailed
	TimedOut
	ParseFailed
	ContextReleased
)

func (S State) String() string {
	return [...]string{"Created", "FilesWritten", "ProcessRunning", "Succeeded",
		"SerializationFailed", "ExecutionFailed", "TimedOut", "ParseFailed", "ContextReleased"}[S]
}

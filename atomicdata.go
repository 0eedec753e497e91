/*
 * atomicdata.go, part of gxtb.
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

import "strings"

//symbols holds the element symbols indexed by atomic number.
//The element 0 is a placeholder, so symbols[1] is "H".
var symbols = [...]string{"",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn", "Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba", "La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb", "Lu",
	"Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra", "Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm", "Md", "No", "Lr",
	"Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds", "Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

//symbol2Z maps the symbols, in lower case, to their atomic numbers.
var symbol2Z = func() map[string]int {
	m := make(map[string]int, len(symbols))
	for z, s := range symbols {
		if z == 0 {
			continue
		}
		m[strings.ToLower(s)] = z
	}
	return m
}()

//MaxZ is the largest atomic number known to the package.
const MaxZ = len(symbols) - 1

//ZFromSymbol returns the atomic number for the element symbol s.
//The symbol is case-insensitive, so "CL", "cl" and "Cl" are all chlorine.
//The returned bool is false if the symbol is not recognized.
func ZFromSymbol(s string) (int, bool) {
	z, ok := symbol2Z[strings.ToLower(strings.TrimSpace(s))]
	return z, ok
}

//SymbolFromZ returns the element symbol for the atomic number z.
func SymbolFromZ(z int) (string, bool) {
	if z < 1 || z > MaxZ {
		return "", false
	}
	return symbols[z], true
}

/*
 * doc.go, part of gxtb.
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

/*Package chem provides the atom and molecule structures used by gxtb, and facilities
for reading and writing the coordinate files that the g-xTB program accepts.

	**Capabilities**

    Reads/writes XYZ files (in Angstrom). XYZ files compressed with zstd
	(*.xyz.zst) can be read directly.

    Reads/writes Turbomole coord files (in Bohr).

    Resolves element identities given either as symbols or as atomic numbers.

    Keeps the unit conversion factors used across gxtb (Hartree, kcal/mol, eV, Bohr, Angstrom).

Running g-xTB calculations and retrieving their results is done by the qm subpackage.

Coordinates are kept in a v3.Matrix (package github.com/rmera/gxtb/v3), based on gonum's
Dense type, where each row represents one point in space.*/
package chem

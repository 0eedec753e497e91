/*
 * doc.go, part of gxtb.
 *
 * Copyright 2021 Raul Mera <rmeraatusachdotcl>
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

//Package qm runs single-point calculations with the g-xTB program
//(which must be obtained independently) and retrieves their results.
//
//The program is treated as a black box with a fixed I/O contract: a coordinate
//file, the .CHRG and .UHF control files, and the energy, gradient and hessian files
//it writes back. Each calculation runs in its own scratch directory, which
//is removed when the calculation ends, no matter how it ends.
//
//Energies are returned, by default, in kcal/mol, and lengths in Angstrom, as in the rest of goChem.
//Gradients are always dE/dx; use Result.Forces for the forces.
package qm

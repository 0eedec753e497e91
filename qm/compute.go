/*
 * compute.go, part of gxtb.
 *
 * Copyright 2025 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
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

package qm

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	chem "github.com/rmera/gxtb"
)

//Compute runs one g-xTB calculation for mol with a default handle. See GXTBHandle.Compute.
func Compute(ctx context.Context, mol *chem.Molecule, charge ChargeState, outputs Outputs) (*Result, error) {
	return NewGXTBHandle().Compute(ctx, mol, &Calc{Charge: charge, Outputs: outputs})
}

//Compute runs one g-xTB calculation for mol, with the settings in Q, and returns its results.
//The calculation runs in a new scratch directory, which is removed before returning,
//whether the calculation succeeded or not, unless the handle is set to keep it.
//Either a complete Result or an Error is returned, never both. Failed calculations
//are not retried.
func (O *GXTBHandle) Compute(ctx context.Context, mol *chem.Molecule, Q *Calc) (*Result, error) {
	errid := "GXTBHandle/Compute"
	if Q == nil {
		Q = new(Calc)
	}
	O.transition(Created)
	//Everything that can be checked without the filesystem is checked before
	//the scratch directory exists.
	if _, _, err := O.prepare(mol, Q); err != nil {
		O.transition(SerializationFailed)
		return nil, decorate(err, errid)
	}
	if _, err := O.executable(); err != nil {
		O.transition(ExecutionFailed)
		return nil, decorate(err, errid)
	}
	dir, err := os.MkdirTemp(O.scratch, "gxtb-")
	if err != nil {
		O.transition(ExecutionFailed)
		return nil, Error{kind: ExecutionError, message: "can't create scratch directory", cause: err, deco: []string{errid}, critical: true}
	}
	res, state, err := O.compute(ctx, dir, mol, Q)
	O.transition(state)
	O.release(dir)
	O.transition(ContextReleased)
	if err != nil {
		if !O.keep {
			err = withDir(err, "")
		}
		return nil, decorate(err, errid)
	}
	if O.keep {
		res.WorkDir = dir
	}
	return res, nil
}

//compute does the actual work of Compute, in the scratch directory dir. It returns
//the final state of the calculation.
func (O *GXTBHandle) compute(ctx context.Context, dir string, mol *chem.Molecule, Q *Calc) (*Result, State, error) {
	if err := O.BuildInput(dir, mol, Q); err != nil {
		return nil, SerializationFailed, err
	}
	O.transition(FilesWritten)
	O.transition(ProcessRunning)
	stdout, err := O.Run(ctx, dir, Q)
	if err != nil {
		if e, ok := err.(Error); ok && e.kind == TimeoutError {
			return nil, TimedOut, err
		}
		return nil, ExecutionFailed, err
	}
	res := &Result{Units: Q.Units, Stdout: stdout}
	res.Energy, err = O.Energy(dir, stdout, Q.Units)
	if err != nil {
		return nil, ParseFailed, err
	}
	if Q.Outputs.gradient() {
		res.Gradient, err = O.Gradient(dir, mol.Len(), Q.Units)
		if err != nil {
			return nil, ParseFailed, err
		}
	}
	if Q.Outputs.Hessian {
		res.Hessian, err = O.Hessian(dir, mol.Len(), Q.Units)
		if err != nil {
			return nil, ParseFailed, err
		}
	}
	if Q.Outputs.Orbitals {
		molden, err := O.Orbitals(dir)
		if err != nil {
			return nil, ParseFailed, err
		}
		res.OrbitalFile, err = O.export(molden, filepath.Base(dir)+".molden")
		if err != nil {
			return nil, ParseFailed, err
		}
	}
	return res, Succeeded, nil
}

//export moves the file src to the export directory, with the name name, and returns its absolute path.
//If the file is to be kept in the scratch directory, it is copied instead.
func (O *GXTBHandle) export(src, name string) (string, error) {
	errid := "GXTBHandle/export"
	dst, err := filepath.Abs(filepath.Join(O.exportdir, name))
	if err != nil {
		return "", Error{kind: ParseError, message: "can't export molden file", cause: err, deco: []string{errid}, critical: true}
	}
	if !O.keep && os.Rename(src, dst) == nil {
		return dst, nil
	}
	//Rename fails across filesystems.
	in, err := os.Open(src)
	if err != nil {
		return "", Error{kind: ParseError, message: "can't export molden file", cause: err, deco: []string{errid}, critical: true}
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", Error{kind: ParseError, message: "can't export molden file", cause: err, deco: []string{errid}, critical: true}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", Error{kind: ParseError, message: "can't export molden file", cause: err, deco: []string{errid}, critical: true}
	}
	if err := out.Close(); err != nil {
		return "", Error{kind: ParseError, message: "can't export molden file", cause: err, deco: []string{errid}, critical: true}
	}
	return dst, nil
}

//release archives the scratch directory, if requested, and removes it unless it is to be kept.
//Failures here are only logged, as the result of the calculation is already known.
func (O *GXTBHandle) release(dir string) {
	if O.archive != "" {
		if err := archiveDir(dir, O.archive); err != nil {
			log.Printf("g-xTB: couldn't archive %s: %s", dir, err)
		} else if O.verbose {
			log.Printf("g-xTB: %s archived to %s", dir, O.archive)
		}
	}
	if O.keep {
		if O.verbose {
			log.Printf("g-xTB: keeping files in %s", dir)
		}
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("g-xTB: couldn't remove %s: %s", dir, err)
	}
}

//String returns a short description of the handle's settings.
func (O *GXTBHandle) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -c %s", O.command, O.coordname)
	if O.timeout > 0 {
		fmt.Fprintf(&b, " (timeout %s)", O.timeout)
	}
	return b.String()
}

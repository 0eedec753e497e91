/*
 * gxtb.go, part of gxtb.
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
//In order to use this part of the library you need the g-xTB program, which must be obtained from Prof. Stefan Grimme's group.
//Please cite the g-xTB references if you used the program.

/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package qm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	chem "github.com/rmera/gxtb"
)

//Names of the files g-xTB reads from, and writes to, its working directory.
const (
	chargeFile   = ".CHRG"
	uhfFile      = ".UHF"
	gradMarker   = ".GRAD"
	hessMarker   = ".HESS"
	moldenMarker = ".MOLDEN"
	energyFile   = "energy"
	gradientFile = "gradient"
	hessianFile  = "hessian"
	moldenFile   = "molden.input"
)

//Trigger selects how the gradient, Hessian and orbital export are requested from g-xTB.
//Flags and marker files are redundant ways of asking for the same thing.
type Trigger int

const (
	TriggerBoth    Trigger = iota //command-line flags and marker files
	TriggerFlags                  //only command-line flags (-grad, -hess, -molden)
	TriggerMarkers                //only zero-byte marker files (.GRAD, .HESS, .MOLDEN)
)

func (T Trigger) flags() bool   { return T != TriggerMarkers }
func (T Trigger) markers() bool { return T != TriggerFlags }

//GXTBHandle represents g-xTB calculations. It only holds configuration, so
//one handle can be used for several concurrent calculations, each of which
//will run in its own scratch directory.
//Note that the defaults are NOT considered part of the API, so they can always change.
type GXTBHandle struct {
	command   string
	coordname string
	format    chem.CoordFormat
	nCPU      int
	timeout   time.Duration
	trigger   Trigger
	scratch   string
	keep      bool
	archive   string
	exportdir string
	verbose   bool
	hook      func(State)
}

//NewGXTBHandle initializes and returns a g-xTB handle
//with values set to their defaults.
func NewGXTBHandle() *GXTBHandle {
	run := new(GXTBHandle)
	run.SetDefaults()
	return run
}

//GXTBHandle methods

//SetDefaults sets calculations parameters to their defaults.
//The command is taken from the GXTB_COMMAND environment variable, if set.
func (O *GXTBHandle) SetDefaults() {
	O.command = "gxtb"
	if c := os.Getenv("GXTB_COMMAND"); c != "" {
		O.command = c
	}
	O.coordname = "gxtb.xyz"
	O.format = chem.UnknownFormat
	O.nCPU = 0
	O.timeout = time.Hour
	O.trigger = TriggerBoth
	O.scratch = ""
	O.keep = false
	O.archive = ""
	O.exportdir = "."
}

//Command returns the name (or path) of the g-xTB executable
func (O *GXTBHandle) Command() string {
	return O.command
}

//SetCommand sets the name or path of the g-xTB executable. Names without
//a path are searched in the PATH.
func (O *GXTBHandle) SetCommand(name string) {
	O.command = name
}

//SetCoordFile sets the name of the coordinate file given to g-xTB.
//Unless a format is set with SetCoordFormat, the format is guessed from
//the name (*.xyz: XYZ, coord, *.coord, *.tmol: Turbomole).
func (O *GXTBHandle) SetCoordFile(name string) {
	O.coordname = name
}

//SetCoordFormat sets the format for the coordinate file.
//chem.UnknownFormat means guessing from the name.
func (O *GXTBHandle) SetCoordFormat(f chem.CoordFormat) {
	O.format = f
}

//SetnCPU sets the number of OpenMP threads for g-xTB.
//0 leaves OMP_NUM_THREADS as it is in the environment.
func (O *GXTBHandle) SetnCPU(cpu int) {
	O.nCPU = cpu
}

//SetTimeout sets the maximum wall-clock time for one run of g-xTB. 0 means no limit
//other than the context's deadline.
func (O *GXTBHandle) SetTimeout(t time.Duration) {
	O.timeout = t
}

//SetTrigger selects how gradients, Hessians and orbitals are requested.
func (O *GXTBHandle) SetTrigger(t Trigger) {
	O.trigger = t
}

//SetScratchDir sets the directory where the scratch directories for each
//calculation are created. The empty string means the system's temporary directory.
func (O *GXTBHandle) SetScratchDir(d string) {
	O.scratch = d
}

//SetKeepFiles sets whether the scratch directory is kept after the calculation, for debugging.
func (O *GXTBHandle) SetKeepFiles(keep bool) {
	O.keep = keep
}

//SetArchive sets a file where the contents of the scratch directory are saved
//as a zstd-compressed tar before it is removed. The empty string disables archiving.
func (O *GXTBHandle) SetArchive(name string) {
	O.archive = name
}

//SetExportDir sets the directory where the molden files are moved when the orbitals
//are requested.
func (O *GXTBHandle) SetExportDir(d string) {
	O.exportdir = d
}

//SetVerbose sets whether the commands and state changes are logged.
func (O *GXTBHandle) SetVerbose(v bool) {
	O.verbose = v
}

//SetStateHook sets a function that is called at every state change of every calculation
//run with the handle. It must be safe for concurrent use if the handle is.
func (O *GXTBHandle) SetStateHook(f func(State)) {
	O.hook = f
}

func (O *GXTBHandle) transition(s State) {
	if O.verbose {
		log.Printf("g-xTB: %s", s)
	}
	if O.hook != nil {
		O.hook(s)
	}
}

//coordFormat returns the format to use for the coordinate file.
func (O *GXTBHandle) coordFormat() chem.CoordFormat {
	if O.format != chem.UnknownFormat {
		return O.format
	}
	return chem.CoordFormatFromName(O.coordname)
}

//prepare checks mol and returns a copy of its topology with the elements resolved,
//together with the resolved charge state.
func (O *GXTBHandle) prepare(mol *chem.Molecule, Q *Calc) (*chem.Topology, ChargeState, error) {
	errid := "GXTBHandle/prepare"
	var cs ChargeState
	if err := mol.Corrupted(); err != nil {
		return nil, cs, Error{kind: SerializationError, message: "invalid structure", cause: err, deco: []string{errid}, critical: true}
	}
	ats := make([]*chem.Atom, mol.Len())
	for i := range ats {
		ats[i] = mol.Atom(i).Copy()
		if err := ats[i].Resolve(); err != nil {
			return nil, cs, Error{kind: SerializationError, message: fmt.Sprintf("atom %d", i+1), cause: err, deco: []string{errid}, critical: true}
		}
	}
	top, _ := chem.NewTopology(ats)
	cs, err := Q.Charge.Resolve(top.Electrons())
	if err != nil {
		return nil, cs, decorate(err, errid)
	}
	if O.coordFormat() == chem.UnknownFormat {
		return nil, cs, Error{kind: SerializationError, message: fmt.Sprintf("can't tell the format of coordinate file %q", O.coordname), deco: []string{errid}, critical: true}
	}
	return top, cs, nil
}

//BuildInput writes, in the directory dir, the coordinate file for mol and the control
//and marker files for the calculation Q. The .CHRG and .UHF files are only written
//when their values differ from the ones g-xTB assumes when they are absent.
func (O *GXTBHandle) BuildInput(dir string, mol *chem.Molecule, Q *Calc) error {
	errid := "GXTBHandle/BuildInput"
	if Q == nil {
		Q = new(Calc)
	}
	top, cs, err := O.prepare(mol, Q)
	if err != nil {
		return decorate(err, errid)
	}
	serr := func(msg string, err error) error {
		return Error{kind: SerializationError, message: msg, cause: err, dir: dir, deco: []string{errid}, critical: true}
	}
	if err := chem.CoordFileWrite(filepath.Join(dir, O.coordname), O.coordFormat(), mol.Coords, top); err != nil {
		return serr("couldn't write coordinate file", err)
	}
	neutral := top.Electrons()
	if cs.writeCharge() {
		if err := writeInt(filepath.Join(dir, chargeFile), cs.Charge); err != nil {
			return serr("couldn't write charge file", err)
		}
	}
	if cs.writeUnpaired(neutral) {
		if err := writeInt(filepath.Join(dir, uhfFile), cs.Unpaired); err != nil {
			return serr("couldn't write unpaired electrons file", err)
		}
	}
	if !O.trigger.markers() {
		return nil
	}
	markers := map[string]bool{
		gradMarker:   Q.Outputs.gradient(),
		hessMarker:   Q.Outputs.Hessian,
		moldenMarker: Q.Outputs.Orbitals,
	}
	for name, wanted := range markers {
		if !wanted {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			return serr("couldn't write marker file "+name, err)
		}
	}
	return nil
}

func writeInt(name string, i int) error {
	return os.WriteFile(name, []byte(fmt.Sprintf("%d\n", i)), 0644)
}

//args returns the command-line arguments for the calculation Q.
func (O *GXTBHandle) args(Q *Calc) []string {
	args := []string{"-c", O.coordname}
	if !O.trigger.flags() {
		return args
	}
	if Q.Outputs.gradient() {
		args = append(args, "-grad")
	}
	if Q.Outputs.Hessian {
		args = append(args, "-hess")
	}
	if Q.Outputs.Orbitals {
		args = append(args, "-molden")
	}
	return args
}

//executable returns the absolute path to the g-xTB executable.
func (O *GXTBHandle) executable() (string, error) {
	errid := "GXTBHandle/executable"
	path, err := exec.LookPath(O.command)
	if err != nil {
		return "", Error{kind: ExecutionError, message: fmt.Sprintf("can't find the executable %q", O.command), cause: err, deco: []string{errid}, critical: true}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", Error{kind: ExecutionError, message: fmt.Sprintf("can't find the executable %q", O.command), cause: err, deco: []string{errid}, critical: true}
	}
	return abs, nil
}

//Run runs g-xTB in the directory dir, previously prepared with BuildInput, and
//blocks until it finishes, the handle's timeout elapses or ctx is done.
//It returns the standard output of the program. The files in dir are not removed.
func (O *GXTBHandle) Run(ctx context.Context, dir string, Q *Calc) (string, error) {
	errid := "GXTBHandle/Run"
	if Q == nil {
		Q = new(Calc)
	}
	path, err := O.executable()
	if err != nil {
		return "", withDir(decorate(err, errid), dir)
	}
	if O.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, O.timeout)
		defer cancel()
	}
	args := O.args(Q)
	command := exec.CommandContext(ctx, path, args...)
	command.Dir = dir
	command.Env = os.Environ()
	if O.nCPU > 0 {
		command.Env = append(command.Env, fmt.Sprintf("OMP_NUM_THREADS=%d", O.nCPU))
	}
	command.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if O.verbose {
		log.Printf("g-xTB: running %s %s in %s", path, strings.Join(args, " "), dir)
	}
	err = command.Run()
	if cerr := ctx.Err(); cerr != nil {
		partial := stdout.String() + stderr.String()
		if errors.Is(cerr, context.DeadlineExceeded) {
			return stdout.String(), Error{kind: TimeoutError, message: "g-xTB didn't finish in time and was killed", output: partial, dir: dir, cause: cerr, deco: []string{errid}, critical: true}
		}
		return stdout.String(), Error{kind: ExecutionError, message: "calculation cancelled", output: partial, dir: dir, cause: cerr, deco: []string{errid}, critical: true}
	}
	if err != nil {
		var exitErr *exec.ExitError
		msg := "couldn't run g-xTB"
		if errors.As(err, &exitErr) {
			msg = fmt.Sprintf("g-xTB exited with status %d", exitErr.ExitCode())
		}
		return stdout.String(), Error{kind: ExecutionError, message: msg, output: stderr.String(), dir: dir, cause: err, deco: []string{errid}, critical: true}
	}
	if O.verbose && stderr.Len() > 0 {
		log.Printf("g-xTB: standard error of a successful run:\n%s", stderr.String())
	}
	return stdout.String(), nil
}

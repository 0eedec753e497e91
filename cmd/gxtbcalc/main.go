/*
 * main.go, part of gxtb.
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

//gxtbcalc runs one g-xTB calculation on a structure file and prints the results as JSON.
//
//	gxtbcalc [options] structure.{xyz,xyz.zst,coord}
//
//Settings are read from a TOML file (-config), the GXTB_COMMAND, GXTB_TIMEOUT
//and GXTB_SCRATCH environment variables (a .env file in the working directory
//is loaded first) and the command line, in increasing order of precedence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	chem "github.com/rmera/gxtb"
	"github.com/rmera/gxtb/qm"
)

var (
	configFile = flag.String("config", "", "TOML file with the settings")
	grad       = flag.Bool("grad", false, "compute the gradient")
	hess       = flag.Bool("hess", false, "compute the Hessian (implies -grad)")
	molden     = flag.Bool("molden", false, "export the orbitals to a molden file")
	chrg       = flag.Int("chrg", 0, "total charge of the system")
	uhf        = flag.Int("uhf", 0, "number of unpaired electrons (default: 0 or 1, from the number of electrons)")
	units      = flag.String("units", "", "units for the results: kcal, ev or au")
	timeout    = flag.Duration("timeout", 0, "maximum running time for g-xTB")
	keep       = flag.Bool("keep", false, "keep the scratch directory")
	archive    = flag.String("archive", "", "save the scratch directory to this zstd-compressed tar file")
	verbose    = flag.Bool("v", false, "log what is being done")
)

//output is what gxtbcalc prints.
type output struct {
	Formula     string       `json:"formula"`
	Units       string       `json:"units"`
	Energy      float64      `json:"energy"`
	Gradient    [][3]float64 `json:"gradient,omitempty"`
	Hessian     [][]float64  `json:"hessian,omitempty"`
	OrbitalFile string       `json:"orbital_file,omitempty"`
	WorkDir     string       `json:"workdir,omitempty"`
}

func newOutput(mol *chem.Molecule, res *qm.Result) output {
	out := output{
		Formula:     mol.Formula(),
		Units:       res.Units.String(),
		Energy:      res.Energy,
		OrbitalFile: res.OrbitalFile,
		WorkDir:     res.WorkDir,
	}
	if res.Gradient != nil {
		out.Gradient = res.Gradient.Rows()
	}
	if res.Hessian != nil {
		n := res.Hessian.SymmetricDim()
		out.Hessian = make([][]float64, n)
		for i := range out.Hessian {
			out.Hessian[i] = make([]float64, n)
			for j := range out.Hessian[i] {
				out.Hessian[i][j] = res.Hessian.At(i, j)
			}
		}
	}
	return out
}

//report writes the details of a failed calculation, or of a failure to
//read the structure, to w.
func report(w io.Writer, err error) {
	var qerr qm.Error
	if !errors.As(err, &qerr) {
		fmt.Fprintf(w, "gxtbcalc: %s\n", err)
		var cerr chem.Error
		if errors.As(err, &cerr) {
			if name := cerr.FileName(); name != "" {
				fmt.Fprintf(w, "input file: %s\n", name)
			}
			if deco := cerr.Decorations(); len(deco) > 0 {
				fmt.Fprintf(w, "in: %s\n", strings.Join(deco, " <- "))
			}
		}
		return
	}
	fmt.Fprintf(w, "gxtbcalc: %s\n%s\n", qerr.Kind(), qerr)
	if out := qerr.Output(); out != "" {
		fmt.Fprintf(w, "----- g-xTB output -----\n%s\n------------------------\n", out)
	}
	if dir := qerr.Dir(); dir != "" {
		fmt.Fprintf(w, "files kept in %s\n", dir)
	}
}

//settings returns the configuration with the flags given in the command line applied.
func settings(set map[string]bool) (Config, error) {
	conf, err := LoadConfig(*configFile)
	if err != nil {
		return conf, err
	}
	conf.FromEnv()
	if set["units"] {
		conf.Units = *units
	}
	if set["timeout"] {
		conf.Timeout = timeout.String()
	}
	if set["keep"] {
		conf.Keep = *keep
	}
	if set["archive"] {
		conf.Archive = *archive
	}
	if set["v"] {
		conf.Verbose = *verbose
	}
	return conf, nil
}

func main() {
	flag.Parse()
	LoadEnv()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gxtbcalc [options] structure")
		flag.PrintDefaults()
		os.Exit(1)
	}
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	conf, err := settings(set)
	if err != nil {
		log.Fatalln(err)
	}
	H, U, err := conf.Handle()
	if err != nil {
		log.Fatalln(err)
	}
	mol, err := chem.CoordFileRead(flag.Arg(0))
	if err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
	var charge, unpaired *int
	if set["chrg"] {
		charge = chrg
	}
	if set["uhf"] {
		unpaired = uhf
	}
	cs, err := qm.NewChargeState(mol, charge, unpaired)
	if err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
	Q := &qm.Calc{
		Charge:  cs,
		Outputs: qm.Outputs{Gradient: *grad, Hessian: *hess, Orbitals: *molden},
		Units:   U,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	res, err := H.Compute(ctx, mol, Q)
	stop()
	if err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newOutput(mol, res)); err != nil {
		log.Fatalln(err)
	}
}

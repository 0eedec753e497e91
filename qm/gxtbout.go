/*
 * gxtbout.go, part of gxtb.
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

package qm

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	chem "github.com/rmera/gxtb"
	v3 "github.com/rmera/gxtb/v3"
	"gonum.org/v1/gonum/mat"
)

//Parsing of the files that g-xTB leaves in its working directory. All of them use
//Turbomole-like "$keyword ... $end" blocks, which are used as anchors, so small changes in
//the rest of the format don't break the parsing. Missing values are always an error.

//block returns the non-empty lines of the first "$keyword" block in the file name, without the
//opening and closing lines. It also returns the opening line, which may carry options.
func block(name, keyword string) (string, []string, error) {
	errid := "block"
	f, err := os.Open(name)
	if err != nil {
		return "", nil, Error{kind: ParseError, message: fmt.Sprintf("can't open %s", filepath.Base(name)), cause: err, deco: []string{errid}, critical: true}
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var head string
	var lines []string
	inblock := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inblock {
			if fields := strings.Fields(line); len(fields) > 0 && fields[0] == keyword {
				inblock = true
				head = line
			}
			continue
		}
		if strings.HasPrefix(line, "$") {
			return head, lines, nil
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", nil, Error{kind: ParseError, message: fmt.Sprintf("can't read %s", filepath.Base(name)), cause: err, deco: []string{errid}, critical: true}
	}
	if !inblock {
		return "", nil, Error{kind: ParseError, message: fmt.Sprintf("no %s block in %s", keyword, filepath.Base(name)), deco: []string{errid}, critical: true}
	}
	return "", nil, Error{kind: ParseError, message: fmt.Sprintf("%s block in %s is truncated", keyword, filepath.Base(name)), output: fragment(strings.Join(lines, "\n"), 10), deco: []string{errid}, critical: true}
}

//parseFloat parses a number that can be in Fortran double precision notation (1.0D-01).
func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}

var stdoutEnergy = regexp.MustCompile(`(?im)^\s*(?:::)?\s*total\s+energy\s*[:=]?\s*(-?\d+\.\d+(?:[EeDd][-+]?\d+)?)`)

//Energy returns the total energy of the calculation that ran in dir, in the units U.
//The energy is read from the $energy block in the energy file (the last
//row, second column, in Hartree). If g-xTB didn't write that file, the last
//"total energy" line in stdout is used.
func (O *GXTBHandle) Energy(dir, stdout string, U Units) (float64, error) {
	errid := "GXTBHandle/Energy"
	name := filepath.Join(dir, energyFile)
	if _, err := os.Stat(name); err != nil {
		m := stdoutEnergy.FindAllStringSubmatch(stdout, -1)
		if len(m) == 0 {
			return 0, Error{kind: ParseError, message: "no energy file and no energy in the output", output: fragment(stdout, 20), dir: dir, deco: []string{errid}, critical: true}
		}
		e, err := parseFloat(m[len(m)-1][1])
		if err != nil {
			return 0, Error{kind: ParseError, message: "can't parse the energy in the output", output: m[len(m)-1][0], cause: err, dir: dir, deco: []string{errid}, critical: true}
		}
		return e * U.energy(), nil
	}
	_, lines, err := block(name, "$energy")
	if err != nil {
		return 0, withDir(decorate(err, errid), dir)
	}
	if len(lines) == 0 {
		return 0, Error{kind: ParseError, message: "empty $energy block", dir: dir, deco: []string{errid}, critical: true}
	}
	last := lines[len(lines)-1]
	fields := strings.Fields(last)
	if len(fields) < 2 {
		return 0, Error{kind: ParseError, message: "ill formed line in $energy block", output: last, dir: dir, deco: []string{errid}, critical: true}
	}
	e, err := parseFloat(fields[1])
	if err != nil {
		return 0, Error{kind: ParseError, message: "can't parse the energy", output: last, cause: err, dir: dir, deco: []string{errid}, critical: true}
	}
	return e * U.energy(), nil
}

//Gradient returns the gradient (dE/dx, not the force) on each of the natoms atoms,
//in the units U, from the $grad block in the gradient file of the calculation that ran in dir.
//The block can contain several cycles; the last one is used.
func (O *GXTBHandle) Gradient(dir string, natoms int, U Units) (*v3.Matrix, error) {
	errid := "GXTBHandle/Gradient"
	_, lines, err := block(filepath.Join(dir, gradientFile), "$grad")
	if err != nil {
		return nil, withDir(decorate(err, errid), dir)
	}
	perr := func(msg, out string, cause error) error {
		return Error{kind: ParseError, message: msg, output: out, cause: cause, dir: dir, deco: []string{errid}, critical: true}
	}
	var ncoords int
	var grad []float64
	cycles := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "cycle") {
			cycles++
			ncoords = 0
			grad = grad[:0]
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 4, 5: //coordinates and element, maybe a frozen flag.
			if err := coordLine(fields); err != nil {
				return nil, perr("ill formed coordinate line in $grad block", line, err)
			}
			ncoords++
		case 3:
			for _, v := range fields {
				g, err := parseFloat(v)
				if err != nil {
					return nil, perr("can't parse gradient line", line, err)
				}
				grad = append(grad, g)
			}
		default:
			return nil, perr("unexpected line in $grad block", line, nil)
		}
	}
	if cycles == 0 {
		return nil, perr("no cycle in $grad block", fragment(strings.Join(lines, "\n"), 10), nil)
	}
	if ncoords != natoms || len(grad) != 3*natoms {
		return nil, perr(fmt.Sprintf("expected %d atoms in $grad block, found %d coordinates and %d gradients", natoms, ncoords, len(grad)/3), fragment(strings.Join(lines, "\n"), 2*natoms+1), nil)
	}
	G, err := v3.NewMatrix(grad)
	if err != nil {
		return nil, perr("can't build gradient", "", err)
	}
	G.Scale(U.energy()/U.length(), G)
	return G, nil
}

//coordLine checks a "x y z element [f]" line of a $grad block.
func coordLine(fields []string) error {
	for _, v := range fields[:3] {
		if _, err := parseFloat(v); err != nil {
			return err
		}
	}
	if _, ok := chem.ZFromSymbol(fields[3]); !ok {
		return fmt.Errorf("unknown element %q", fields[3])
	}
	if len(fields) == 5 && fields[4] != "f" {
		return fmt.Errorf("unexpected field %q", fields[4])
	}
	return nil
}

//indexedHessian tells whether the lines of a $hessian block for an n x n matrix are
//Turbomole-style "row chunk v1 .. v5" lines: at most 7 fields each, row indexes within
//1..n that never decrease, and chunk indexes that start at 1 for each row and grow by one.
func indexedHessian(lines []string, n int) bool {
	prevRow, prevChunk := 0, 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 3 || len(fields) > 7 {
			return false
		}
		row, err := strconv.Atoi(fields[0])
		if err != nil {
			return false
		}
		chunk, err := strconv.Atoi(fields[1])
		if err != nil {
			return false
		}
		switch {
		case row < 1 || row > n:
			return false
		case row == prevRow && chunk == prevChunk+1:
		case row > prevRow && chunk == 1:
		default:
			return false
		}
		prevRow, prevChunk = row, chunk
	}
	return len(lines) > 0
}

//hessianTolerance is the largest relative asymmetry accepted in a Hessian.
const hessianTolerance = 1e-6

//Hessian returns the 3natoms x 3natoms Hessian in units U, from the $hessian block of
//the hessian file of the calculation that ran in dir. Rows can be given either with
//leading "row chunk" indexes, Turbomole style, or as a plain row-major stream of numbers.
//The matrix must be symmetric within a small tolerance; the average of the
//two triangles is returned.
func (O *GXTBHandle) Hessian(dir string, natoms int, U Units) (*mat.SymDense, error) {
	errid := "GXTBHandle/Hessian"
	_, lines, err := block(filepath.Join(dir, hessianFile), "$hessian")
	if err != nil {
		return nil, withDir(decorate(err, errid), dir)
	}
	perr := func(msg, out string, cause error) error {
		return Error{kind: ParseError, message: msg, output: out, cause: cause, dir: dir, deco: []string{errid}, critical: true}
	}
	n := 3 * natoms
	indexed := indexedHessian(lines, n)
	rows := make([][]float64, n)
	var flat []float64
	for _, line := range lines {
		fields := strings.Fields(line)
		if indexed {
			i, _ := strconv.Atoi(fields[0])
			for _, v := range fields[2:] {
				h, err := parseFloat(v)
				if err != nil {
					return nil, perr("can't parse $hessian line", line, err)
				}
				rows[i-1] = append(rows[i-1], h)
			}
			continue
		}
		for _, v := range fields {
			h, err := parseFloat(v)
			if err != nil {
				return nil, perr("can't parse $hessian line", line, err)
			}
			flat = append(flat, h)
		}
	}
	if indexed {
		for i, r := range rows {
			if len(r) != n {
				return nil, perr(fmt.Sprintf("row %d of the Hessian has %d elements, expected %d", i+1, len(r), n), fragment(strings.Join(lines, "\n"), 10), nil)
			}
			flat = append(flat, r...)
		}
	}
	if len(flat) != n*n {
		return nil, perr(fmt.Sprintf("the Hessian has %d elements, expected %d for %d atoms", len(flat), n*n, natoms), fragment(strings.Join(lines, "\n"), 10), nil)
	}
	full := mat.NewDense(n, n, flat)
	maxabs := math.Max(1, mat.Norm(full, math.Inf(1)))
	H := mat.NewSymDense(n, nil)
	factor := U.energy() / (U.length() * U.length())
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := full.At(i, j), full.At(j, i)
			if math.Abs(a-b) > hessianTolerance*maxabs {
				return nil, perr(fmt.Sprintf("the Hessian is not symmetric: H[%d][%d]=%g, H[%d][%d]=%g", i, j, a, j, i, b), "", nil)
			}
			H.SetSym(i, j, factor*(a+b)/2)
		}
	}
	return H, nil
}

//Orbitals returns the path to the molden file produced by the calculation that ran in dir.
//g-xTB writes molden.input; any *.molden file is also accepted.
func (O *GXTBHandle) Orbitals(dir string) (string, error) {
	errid := "GXTBHandle/Orbitals"
	name := filepath.Join(dir, moldenFile)
	if fi, err := os.Stat(name); err == nil && fi.Size() > 0 {
		return name, nil
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.molden"))
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Size() > 0 {
			return m, nil
		}
	}
	return "", Error{kind: ParseError, message: "orbitals were requested but no molden file was written", dir: dir, deco: []string{errid}, critical: true}
}

/*
 * compute_test.go, part of gxtb.
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
	"archive/tar"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	chem "github.com/rmera/gxtb"
	v3 "github.com/rmera/gxtb/v3"
)

//fakeGXTB follows the I/O contract of g-xTB for a water molecule. What it does
//is controlled by the FAKE_GXTB_MODE environment variable.
const fakeGXTB = `#!/bin/sh
coord=""
gradflag=0; hessflag=0; moldenflag=0
while [ $# -gt 0 ]; do
	case "$1" in
	-c) coord="$2"; shift ;;
	-grad) gradflag=1 ;;
	-hess) hessflag=1 ;;
	-molden) moldenflag=1 ;;
	esac
	shift
done
if [ -n "$FAKE_GXTB_SENTINEL" ]; then touch "$FAKE_GXTB_SENTINEL"; fi
gradmarker=0; hessmarker=0; moldenmarker=0
if [ -f .GRAD ]; then gradmarker=1; fi
if [ -f .HESS ]; then hessmarker=1; fi
if [ -f .MOLDEN ]; then moldenmarker=1; fi
if [ ! -f "$coord" ]; then
	echo "error: coordinate file '$coord' not found" >&2
	exit 1
fi
echo "grad flag=$gradflag marker=$gradmarker"
echo "hess flag=$hessflag marker=$hessmarker"
if [ -f .CHRG ]; then echo "charge $(cat .CHRG)"; fi
if [ -f .UHF ]; then echo "uhf $(cat .UHF)"; fi
mode="$FAKE_GXTB_MODE"
case "$mode" in
sleep) exec sleep 30 ;;
fail) echo "SCF did not converge in 250 iterations" >&2; exit 3 ;;
esac
if [ "$mode" = "stdoutenergy" ]; then
	echo ":: total energy      -76.437080196388 Eh"
elif [ "$mode" != "noenergy" ]; then
	cat > energy <<'END'
$energy
     1   -76.40000000000000   26.05970947993875   99.9   99.9   99.9
     2   -76.43708019638818   26.05970947993875   99.9   99.9   99.9
$end
END
fi
if [ $gradflag = 1 ] || [ $gradmarker = 1 ]; then
	cat > gradient <<'END'
$grad
  cycle =      1    SCF energy =   -76.4370801964   |dE/dxyz| =  0.025
    0.00000000000000      0.00000000000000      0.00000000000000      o
    0.00000000000000      1.43052257367300      1.10738000000000      h
    0.00000000000000     -1.43052257367300      1.10738000000000      h
   0.0000000000000D+00   0.0000000000000D+00  -0.2214330380600D-01
   0.0000000000000D+00   0.1310000000000D-01   0.1107165190300D-01
END
	if [ "$mode" != "badgrad" ]; then
		echo "   0.0000000000000D+00  -0.1310000000000D-01   0.1107165190300D-01" >> gradient
	fi
	echo '$end' >> gradient
fi
if [ $hessflag = 1 ] || [ $hessmarker = 1 ]; then
	awk -v mode="$mode" 'BEGIN { n = 9; print "$hessian"; for (i = 1; i <= n; i++) { c = 1; line = sprintf("%d %d", i, c); k = 0; for (j = 1; j <= n; j++) { if (i == j) v = 0.5; else if (mode == "asymhess") v = 0.01 * i + 0.02 * j; else v = 0.01 * (i + j); line = line sprintf(" %.10f", v); k++; if (k == 5) { print line; c++; line = sprintf("%d %d", i, c); k = 0 } } if (k > 0) print line } print "$end" }' > hessian
fi
if [ $moldenflag = 1 ] || [ $moldenmarker = 1 ]; then
	printf '[Molden Format]\n[Atoms] AU\n' > molden.input
fi
exit 0
`

const waterEnergy = -76.43708019638818 //Hartree, as written by fakeGXTB

//testHandle puts fakeGXTB in the PATH and returns a handle that uses it,
//with its own scratch and export directories.
func testHandle(Te *testing.T, mode string) (*GXTBHandle, string) {
	Te.Helper()
	if runtime.GOOS == "windows" {
		Te.Skip("the fake g-xTB is a shell script")
	}
	bin := Te.TempDir()
	if err := os.WriteFile(filepath.Join(bin, "gxtb"), []byte(fakeGXTB), 0755); err != nil {
		Te.Fatal(err)
	}
	Te.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	Te.Setenv("FAKE_GXTB_MODE", mode)
	scratch := Te.TempDir()
	H := NewGXTBHandle()
	H.SetCommand("gxtb")
	H.SetScratchDir(scratch)
	H.SetExportDir(Te.TempDir())
	H.SetTimeout(20 * time.Second)
	return H, scratch
}

func testWater(Te *testing.T) *chem.Molecule {
	Te.Helper()
	coords, err := v3.NewMatrix([]float64{
		0.0, 0.0, 0.0,
		0.0, 0.757, 0.586,
		0.0, -0.757, 0.586,
	})
	if err != nil {
		Te.Fatal(err)
	}
	top, _ := chem.NewTopology([]*chem.Atom{{Symbol: "O"}, {Symbol: "H"}, {Z: 1}})
	mol, err := chem.NewMolecule(coords, top)
	if err != nil {
		Te.Fatal(err)
	}
	return mol
}

//recorder collects the states of a calculation.
type recorder struct {
	sync.Mutex
	states []State
}

func (R *recorder) hook(s State) {
	R.Lock()
	defer R.Unlock()
	R.states = append(R.states, s)
}

func (R *recorder) String() string {
	var s []string
	for _, v := range R.states {
		s = append(s, v.String())
	}
	return strings.Join(s, ",")
}

func assertEmpty(Te *testing.T, dir string) {
	Te.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		Te.Fatal(err)
	}
	if len(entries) != 0 {
		Te.Errorf("%s should be empty, but contains %d entries, the first one %s", dir, len(entries), entries[0].Name())
	}
}

func TestWaterEnergy(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	rec := new(recorder)
	H.SetStateHook(rec.hook)
	res, err := H.Compute(context.Background(), testWater(Te), &Calc{})
	if err != nil {
		Te.Fatal(err)
	}
	if math.IsNaN(res.Energy) || math.IsInf(res.Energy, 0) {
		Te.Errorf("energy should be finite, got %f", res.Energy)
	}
	if math.Abs(res.Energy-waterEnergy*chem.H2Kcal) > 1e-8 {
		Te.Errorf("expected the energy of the last row in kcal/mol, %f, got %f", waterEnergy*chem.H2Kcal, res.Energy)
	}
	if res.Gradient != nil || res.Hessian != nil || res.OrbitalFile != "" || res.Forces() != nil {
		Te.Error("only the energy was requested")
	}
	if res.WorkDir != "" {
		Te.Error("the scratch directory should not be reported if it is not kept")
	}
	if rec.String() != "Created,FilesWritten,ProcessRunning,Succeeded,ContextReleased" {
		Te.Errorf("unexpected states: %s", rec)
	}
	assertEmpty(Te, scratch)
}

func TestWaterGradient(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	res, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Gradient: true}, Units: HartreeBohr})
	if err != nil {
		Te.Fatal(err)
	}
	if res.Energy != waterEnergy {
		Te.Errorf("in atomic units the energy should be unchanged: %f", res.Energy)
	}
	if res.Gradient == nil || res.Gradient.NVecs() != 3 {
		Te.Fatal("expected 3 gradient vectors")
	}
	//O, H, H: the O is pulled along z, the hydrogens symmetrically in y.
	o, h1, h2 := res.Gradient.Vec(0), res.Gradient.Vec(1), res.Gradient.Vec(2)
	if o[2] != -0.022143303806 || h1[1] != 0.0131 || h2[1] != -0.0131 {
		Te.Errorf("gradient not in the input order or with the wrong sign: %v %v %v", o, h1, h2)
	}
	f := res.Forces()
	if f.At(0, 2) != -o[2] {
		Te.Errorf("forces should be minus the gradient: %v", f.Rows())
	}
	if res.Hessian != nil {
		Te.Error("the Hessian was not requested")
	}
	assertEmpty(Te, scratch)
}

func TestUnits(Te *testing.T) {
	H, _ := testHandle(Te, "")
	for _, U := range []Units{KcalAngstrom, EVAngstrom} {
		res, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Gradient: true}, Units: U})
		if err != nil {
			Te.Fatal(err)
		}
		e, l := chem.H2Kcal, chem.Bohr2A
		if U == EVAngstrom {
			e = chem.H2eV
		}
		if math.Abs(res.Energy-waterEnergy*e) > 1e-8 {
			Te.Errorf("%s: wrong energy %f", U, res.Energy)
		}
		if g := res.Gradient.At(0, 2); math.Abs(g-(-0.022143303806*e/l)) > 1e-9 {
			Te.Errorf("%s: wrong gradient %f", U, g)
		}
		if res.Units != U {
			Te.Errorf("the result should report its units, %s, got %s", U, res.Units)
		}
	}
}

func TestWaterHessian(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	res, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Hessian: true}, Units: HartreeBohr})
	if err != nil {
		Te.Fatal(err)
	}
	if res.Gradient == nil || res.Gradient.NVecs() != 3 {
		Te.Error("the Hessian implies the gradient")
	}
	if r, c := res.Hessian.Dims(); r != 9 || c != 9 {
		Te.Fatalf("the Hessian should be 9x9, it is %dx%d", r, c)
	}
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			if res.Hessian.At(i, j) != res.Hessian.At(j, i) {
				Te.Errorf("the Hessian is not symmetric at %d %d", i, j)
			}
		}
	}
	if res.Hessian.At(0, 0) != 0.5 || math.Abs(res.Hessian.At(0, 1)-0.03) > 1e-12 {
		Te.Errorf("unexpected Hessian values: %f %f", res.Hessian.At(0, 0), res.Hessian.At(0, 1))
	}
	assertEmpty(Te, scratch)
}

func TestAsymmetricHessian(Te *testing.T) {
	H, scratch := testHandle(Te, "asymhess")
	_, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Hessian: true}})
	if !errors.Is(err, ErrParse) {
		Te.Fatalf("an asymmetric Hessian should be a parse error, got %v", err)
	}
	assertEmpty(Te, scratch)
}

func TestOrbitals(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	res, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Orbitals: true}})
	if err != nil {
		Te.Fatal(err)
	}
	if !filepath.IsAbs(res.OrbitalFile) {
		Te.Errorf("the molden file path should be absolute: %s", res.OrbitalFile)
	}
	b, err := os.ReadFile(res.OrbitalFile)
	if err != nil {
		Te.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "[Molden Format]") {
		Te.Errorf("unexpected molden file: %q", b)
	}
	if res.Gradient != nil {
		Te.Error("the gradient was not requested")
	}
	assertEmpty(Te, scratch)
}

func TestTriggers(Te *testing.T) {
	H, _ := testHandle(Te, "")
	expected := map[Trigger]string{
		TriggerBoth:    "grad flag=1 marker=1",
		TriggerFlags:   "grad flag=1 marker=0",
		TriggerMarkers: "grad flag=0 marker=1",
	}
	for trigger, line := range expected {
		H.SetTrigger(trigger)
		res, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Gradient: true}})
		if err != nil {
			Te.Fatal(err)
		}
		if !strings.Contains(res.Stdout, line) {
			Te.Errorf("trigger %d: expected %q in the output, got %q", trigger, line, res.Stdout)
		}
		if res.Gradient == nil || res.Gradient.NVecs() != 3 {
			Te.Errorf("trigger %d: no gradient", trigger)
		}
	}
}

func TestChargeFiles(Te *testing.T) {
	H, _ := testHandle(Te, "")
	cation := ChargeState{Charge: 1, ExplicitCharge: true}
	res, err := H.Compute(context.Background(), testWater(Te), &Calc{Charge: cation})
	if err != nil {
		Te.Fatal(err)
	}
	if !strings.Contains(res.Stdout, "charge 1") || strings.Contains(res.Stdout, "uhf") {
		Te.Errorf("a doublet cation needs only the .CHRG file: %q", res.Stdout)
	}
	triplet := ChargeState{Unpaired: 2, ExplicitUnpaired: true}
	res, err = H.Compute(context.Background(), testWater(Te), &Calc{Charge: triplet})
	if err != nil {
		Te.Fatal(err)
	}
	if strings.Contains(res.Stdout, "charge") || !strings.Contains(res.Stdout, "uhf 2") {
		Te.Errorf("a neutral triplet needs only the .UHF file: %q", res.Stdout)
	}
}

func TestIdempotent(Te *testing.T) {
	H, _ := testHandle(Te, "")
	mol := testWater(Te)
	Q := &Calc{Outputs: Outputs{Gradient: true}}
	r1, err := H.Compute(context.Background(), mol, Q)
	if err != nil {
		Te.Fatal(err)
	}
	r2, err := H.Compute(context.Background(), mol, Q)
	if err != nil {
		Te.Fatal(err)
	}
	if r1.Energy != r2.Energy {
		Te.Errorf("energies differ: %f %f", r1.Energy, r2.Energy)
	}
	if mol.Atom(2).Symbol != "" {
		Te.Error("the caller's molecule should not be modified")
	}
}

func TestConcurrent(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	mol := testWater(Te)
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = H.Compute(context.Background(), mol, &Calc{Outputs: Outputs{Gradient: true}})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			Te.Errorf("calculation %d: %v", i, err)
		}
	}
	assertEmpty(Te, scratch)
}

func TestEmptyStructure(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	sentinel := filepath.Join(Te.TempDir(), "ran")
	Te.Setenv("FAKE_GXTB_SENTINEL", sentinel)
	rec := new(recorder)
	H.SetStateHook(rec.hook)
	empty := &chem.Molecule{Topology: &chem.Topology{}}
	_, err := H.Compute(context.Background(), empty, &Calc{Outputs: Outputs{Gradient: true}})
	if !errors.Is(err, ErrSerialization) {
		Te.Fatalf("expected a serialization error, got %v", err)
	}
	var qerr Error
	if !errors.As(err, &qerr) || qerr.Kind() != SerializationError {
		Te.Errorf("the error should be a qm.Error: %v", err)
	}
	if _, err := os.Stat(sentinel); err == nil {
		Te.Error("g-xTB should not have been run")
	}
	if rec.String() != "Created,SerializationFailed" {
		Te.Errorf("unexpected states: %s", rec)
	}
	holed := &chem.Molecule{Topology: &chem.Topology{Atoms: []*chem.Atom{{Symbol: "O"}, nil}}, Coords: v3.Zeros(2)}
	if _, err := H.Compute(context.Background(), holed, nil); !errors.Is(err, ErrSerialization) {
		Te.Errorf("a nil atom should be a serialization error, got %v", err)
	}
	bad := testWater(Te)
	bad.Atom(1).Symbol = "Qq"
	if _, err := H.Compute(context.Background(), bad, nil); !errors.Is(err, ErrSerialization) {
		Te.Errorf("an unknown element should be a serialization error, got %v", err)
	}
	if _, err := os.Stat(sentinel); err == nil {
		Te.Error("g-xTB should not have been run")
	}
	assertEmpty(Te, scratch)
}

func TestMissingExecutable(Te *testing.T) {
	H, scratch := testHandle(Te, "")
	H.SetCommand("gxtb-that-is-not-installed")
	rec := new(recorder)
	H.SetStateHook(rec.hook)
	_, err := H.Compute(context.Background(), testWater(Te), nil)
	if !errors.Is(err, ErrExecution) {
		Te.Fatalf("expected an execution error, got %v", err)
	}
	if rec.String() != "Created,ExecutionFailed" {
		Te.Errorf("unexpected states: %s", rec)
	}
	assertEmpty(Te, scratch)
}

func TestExecutionFailure(Te *testing.T) {
	H, scratch := testHandle(Te, "fail")
	rec := new(recorder)
	H.SetStateHook(rec.hook)
	_, err := H.Compute(context.Background(), testWater(Te), nil)
	if !errors.Is(err, ErrExecution) {
		Te.Fatalf("expected an execution error, got %v", err)
	}
	var qerr Error
	errors.As(err, &qerr)
	if qerr.Output() != "SCF did not converge in 250 iterations\n" {
		Te.Errorf("the standard error should be reported verbatim, got %q", qerr.Output())
	}
	if !strings.Contains(err.Error(), "status 3") {
		Te.Errorf("the exit status should be reported: %s", err)
	}
	if !strings.HasSuffix(rec.String(), "ProcessRunning,ExecutionFailed,ContextReleased") {
		Te.Errorf("unexpected states: %s", rec)
	}
	assertEmpty(Te, scratch)
}

func TestTimeout(Te *testing.T) {
	H, scratch := testHandle(Te, "sleep")
	H.SetTimeout(300 * time.Millisecond)
	rec := new(recorder)
	H.SetStateHook(rec.hook)
	start := time.Now()
	_, err := H.Compute(context.Background(), testWater(Te), nil)
	if !errors.Is(err, ErrTimeout) {
		Te.Fatalf("expected a timeout, got %v", err)
	}
	if time.Since(start) > 15*time.Second {
		Te.Error("the process should have been killed at the timeout")
	}
	var qerr Error
	errors.As(err, &qerr)
	if !strings.Contains(qerr.Output(), "grad flag=0") {
		Te.Errorf("the partial output should be reported, got %q", qerr.Output())
	}
	if !strings.HasSuffix(rec.String(), "ProcessRunning,TimedOut,ContextReleased") {
		Te.Errorf("unexpected states: %s", rec)
	}
	assertEmpty(Te, scratch)
}

func TestCancel(Te *testing.T) {
	H, scratch := testHandle(Te, "sleep")
	rec := new(recorder)
	H.SetStateHook(rec.hook)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)
	start := time.Now()
	_, err := H.Compute(ctx, testWater(Te), nil)
	if !errors.Is(err, ErrExecution) || errors.Is(err, ErrTimeout) {
		Te.Fatalf("a cancelled calculation should be an execution error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		Te.Errorf("the cancellation should be reachable as the cause: %v", err)
	}
	if time.Since(start) > 15*time.Second {
		Te.Error("the process should have been killed on cancellation")
	}
	if !strings.HasSuffix(rec.String(), "ProcessRunning,ExecutionFailed,ContextReleased") {
		Te.Errorf("unexpected states: %s", rec)
	}
	assertEmpty(Te, scratch)
}

func TestParseFailures(Te *testing.T) {
	for _, mode := range []string{"badgrad", "noenergy"} {
		H, scratch := testHandle(Te, mode)
		rec := new(recorder)
		H.SetStateHook(rec.hook)
		_, err := H.Compute(context.Background(), testWater(Te), &Calc{Outputs: Outputs{Gradient: true}})
		if !errors.Is(err, ErrParse) {
			Te.Fatalf("%s: expected a parse error, got %v", mode, err)
		}
		if !strings.HasSuffix(rec.String(), "ParseFailed,ContextReleased") {
			Te.Errorf("%s: unexpected states: %s", mode, rec)
		}
		assertEmpty(Te, scratch)
	}
}

func TestEnergyFromStdout(Te *testing.T) {
	H, _ := testHandle(Te, "stdoutenergy")
	res, err := H.Compute(context.Background(), testWater(Te), &Calc{Units: HartreeBohr})
	if err != nil {
		Te.Fatal(err)
	}
	if res.Energy != -76.437080196388 {
		Te.Errorf("unexpected energy %f", res.Energy)
	}
}

func TestKeepAndArchive(Te *testing.T) {
	H, scratch := testHandle(Te, "fail")
	archive := filepath.Join(Te.TempDir(), "debug.tar.zst")
	H.SetArchive(archive)
	_, err := H.Compute(context.Background(), testWater(Te), nil)
	if !errors.Is(err, ErrExecution) {
		Te.Fatalf("expected an execution error, got %v", err)
	}
	assertEmpty(Te, scratch)
	f, err := os.Open(archive)
	if err != nil {
		Te.Fatal(err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		Te.Fatal(err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			Te.Fatal(err)
		}
		if strings.HasSuffix(hdr.Name, "/gxtb.xyz") {
			found = true
		}
	}
	if !found {
		Te.Error("the coordinate file should be in the archive")
	}

	Te.Setenv("FAKE_GXTB_MODE", "")
	H.SetArchive("")
	H.SetKeepFiles(true)
	res, err := H.Compute(context.Background(), testWater(Te), nil)
	if err != nil {
		Te.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(res.WorkDir, "energy")); err != nil {
		Te.Errorf("the scratch directory should be kept: %v", err)
	}
}

/*
 * v3_test.go, part of gxtb.
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

package v3

import (
	"math"
	"testing"
)

func TestNewMatrix(Te *testing.T) {
	A, err := NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		Te.Fatal(err)
	}
	if A.NVecs() != 2 {
		Te.Errorf("expected 2 vectors, got %d", A.NVecs())
	}
	if v := A.Vec(1); v != [3]float64{4, 5, 6} {
		Te.Errorf("unexpected second vector %v", v)
	}
	if _, err := NewMatrix([]float64{1, 2, 3, 4}); err == nil {
		Te.Error("a slice not divisible by 3 should fail")
	}
	if _, err := NewMatrix(nil); err == nil {
		Te.Error("an empty slice should fail")
	}
}

func TestViewsAndScale(Te *testing.T) {
	A := Zeros(3)
	A.SetVec(2, [3]float64{1, -2, 2})
	view := A.VecView(2)
	view.Set(0, 0, 3)
	if A.At(2, 0) != 3 {
		Te.Error("changes in the view should be reflected in the matrix")
	}
	B := Zeros(3)
	B.Scale(-1, A)
	if B.At(2, 1) != 2 {
		Te.Errorf("scaling went wrong: %v", B.Rows())
	}
	if math.Abs(A.Norm()-math.Sqrt(17)) > 1e-12 {
		Te.Errorf("wrong norm %f", A.Norm())
	}
	if A.MaxAbs() != 3 {
		Te.Errorf("wrong max abs %f", A.MaxAbs())
	}
	C := A.Copy()
	C.Set(0, 0, 10)
	if A.At(0, 0) != 0 {
		Te.Error("Copy should not share data with the original")
	}
}

/*
 * errors.go, part of gxtb.
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
	"errors"
	"fmt"
	"strings"
)

//ErrorKind tells at which point a calculation failed.
type ErrorKind int

const (
	SerializationError ErrorKind = iota + 1 //invalid input, nothing was run
	ExecutionError                          //g-xTB couldn't be run, or exited with an error
	TimeoutError                            //g-xTB didn't finish in the allowed time
	ParseError                              //g-xTB finished, but its output is missing or malformed
)

func (K ErrorKind) String() string {
	switch K {
	case SerializationError:
		return "serialization error"
	case ExecutionError:
		return "execution error"
	case TimeoutError:
		return "timeout"
	case ParseError:
		return "parse error"
	}
	return "unknown error"
}

//Targets for errors.Is, one per ErrorKind.
var (
	ErrSerialization = errors.New("qm: serialization error")
	ErrExecution     = errors.New("qm: execution error")
	ErrTimeout       = errors.New("qm: timeout")
	ErrParse         = errors.New("qm: parse error")
)

//Error is the error returned by the g-xTB handle. Besides the message, it carries
//the diagnostic text relevant to the failure: the standard error of the program
//for execution errors, the partial output for timeouts, or the offending
//output fragment for parse errors.
type Error struct {
	kind     ErrorKind
	message  string
	dir      string //the scratch directory, if any.
	output   string
	cause    error
	deco     []string
	critical bool
}

func (err Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "g-xTB %s: %s", err.kind, err.message)
	if err.cause != nil {
		fmt.Fprintf(&b, ": %s", err.cause.Error())
	}
	if len(err.deco) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(err.deco, " <- "))
	}
	return b.String()
}

//Kind returns the kind of failure.
func (err Error) Kind() ErrorKind { return err.kind }

//Output returns the diagnostic text associated with the error, verbatim.
func (err Error) Output() string { return err.output }

//Dir returns the scratch directory where the calculation ran. It only
//exists after the call if the files were kept.
func (err Error) Dir() string { return err.dir }

//Unwrap returns the underlying error, if any.
func (err Error) Unwrap() error { return err.cause }

//Is allows errors.Is to match an Error with the ErrSerialization, ErrExecution,
//ErrTimeout and ErrParse targets.
func (err Error) Is(target error) bool {
	switch target {
	case ErrSerialization:
		return err.kind == SerializationError
	case ErrExecution:
		return err.kind == ExecutionError
	case ErrTimeout:
		return err.kind == TimeoutError
	case ErrParse:
		return err.kind == ParseError
	}
	return false
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical return whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

//decorate returns err with caller added to its decorations if it is an Error, and
//err unchanged otherwise.
func decorate(err error, caller string) error {
	var e Error
	if errors.As(err, &e) {
		e.deco = append(e.deco, caller)
		return e
	}
	return err
}

//withDir returns err, if it is an Error, with the scratch directory set.
func withDir(err error, dir string) error {
	var e Error
	if errors.As(err, &e) {
		e.dir = dir
		return e
	}
	return err
}

//fragment returns at most the last n lines of s, for error reports.
func fragment(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

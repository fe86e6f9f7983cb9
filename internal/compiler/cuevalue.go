package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/safeprop/internal/ir"
)

// field looks up a direct child of v.
func field(v cue.Value, name string) cue.Value {
	return v.LookupPath(cue.MakePath(cue.Str(name)))
}

func optString(v cue.Value, name string) (string, error) {
	f := field(v, name)
	if !f.Exists() {
		return "", nil
	}
	if err := f.Err(); err != nil {
		return "", formatCUEError(err)
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: "must be a string", Pos: f.Pos()}
	}
	return s, nil
}

func reqString(v cue.Value, name string) (string, error) {
	f := field(v, name)
	if !f.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	if err := f.Err(); err != nil {
		return "", formatCUEError(err)
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: name, Message: "must be a string", Pos: f.Pos()}
	}
	if s == "" {
		return "", &CompileError{Field: name, Message: name + " must not be empty", Pos: f.Pos()}
	}
	return s, nil
}

func optBool(v cue.Value, name string) (bool, error) {
	f := field(v, name)
	if !f.Exists() {
		return false, nil
	}
	if err := f.Err(); err != nil {
		return false, formatCUEError(err)
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: name, Message: "must be a bool", Pos: f.Pos()}
	}
	return b, nil
}

// eachElem calls fn for every element of the list at v.name. A missing field
// is an empty list.
func eachElem(v cue.Value, name string, fn func(i int, elem cue.Value) error) error {
	f := field(v, name)
	if !f.Exists() {
		return nil
	}
	if err := f.Err(); err != nil {
		return formatCUEError(err)
	}
	iter, err := f.List()
	if err != nil {
		return &CompileError{Field: name, Message: "must be a list", Pos: f.Pos()}
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(i, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	var out []string
	err := eachElem(v, name, func(i int, elem cue.Value) error {
		s, err := elem.String()
		if err != nil {
			return &CompileError{Field: fmt.Sprintf("%s[%d]", name, i), Message: "must be a string", Pos: elem.Pos()}
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// toIRValue converts a concrete CUE value into an argument value.
// Floats and null are rejected, matching the IR's value domain.
func toIRValue(v cue.Value, path string) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Str(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.List{}
		for i := 0; iter.Next(); i++ {
			ev, err := toIRValue(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := ir.Object{}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			ev, err := toIRValue(iter.Value(), path+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = ev
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("unsupported argument kind %s", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

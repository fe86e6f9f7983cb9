// Package engine decides which declarations need a stronger safety label.
//
// Every type and method in a program is analyzed independently. A type is
// classified into one of three strategies (record, generated value object,
// arbitrary class) that each compute the most restrictive safety a consumer
// could observe through it. A method's safety comes from the return
// statements of its own body. Both feed the same decision: annotate when the
// computed level is DO_NOT_LOG or UNSAFE and the existing label does not
// already cover it.
//
// The engine never mutates the program and never infers SAFE. Missing
// information resolves to UNKNOWN, which is always a no-op, so analysis has
// no error path of its own.
//
// All program queries go through oracle.Oracle. Because nothing is shared
// and nothing is written, declarations may be analyzed in any order and in
// parallel; AnalyzeProgram fans out across compilation units.
package engine

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/safeprop/internal/compiler"
	"github.com/roach88/safeprop/internal/config"
	"github.com/roach88/safeprop/internal/ir"
)

// LoadResult is a compiled program and the configuration it was loaded with.
type LoadResult struct {
	Dir       string
	Program   *ir.Program
	Config    config.Config
	FileCount int // Number of CUE files found
}

// LoadError is a failure to turn a directory into a program, tagged with
// one of the ErrCode constants.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProgram loads the CUE package in dir and compiles it. Relative
// source_file paths in the documents resolve against dir.
func LoadProgram(dir string, cfg config.Config) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing program directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	c := compiler.New(compiler.WithSourceReader(sourceReader(dir)))
	prog, err := c.CompileProgram(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Dir:       dir,
		Program:   prog,
		Config:    cfg,
		FileCount: len(cueFiles),
	}, nil
}

// sourceReader reads source_file paths relative to dir.
func sourceReader(dir string) func(string) (string, error) {
	return func(path string) (string, error) {
		data, err := os.ReadFile(resolvePath(dir, path))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// FindCUEFiles returns the .cue files directly in dir. Subdirectories are
// not part of the package and are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// LoadConfig reads the configuration for a program directory. An explicit
// path wins over dir/safeprop.yaml.
func LoadConfig(dir, path string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDir(dir)
	}
	if err != nil {
		return config.Config{}, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}
	return cfg, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompile,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var linkErr *compiler.LinkError
	if errors.As(err, &linkErr) {
		return &LoadError{Code: ErrCodeLink, Message: linkErr.Error()}
	}
	var locateErr *compiler.LocateError
	if errors.As(err, &locateErr) {
		return &LoadError{Code: ErrCodeLocate, Message: locateErr.Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // safeprop.yaml unreadable or invalid
	ErrCodeStore       = "E009" // History store error

	ErrCodeCompile = "E010" // Malformed declaration-graph document
	ErrCodeLink    = "E011" // Cyclic or duplicate declarations
	ErrCodeLocate  = "E012" // Declaration text not found in unit source
)

package compiler

import (
	"os"
	"path/filepath"
)

// DDCModuleName is the module name the incremental compiler emits the sample as
const DDCModuleName = "dartpad_main"

// CommandBuilder builds toolchain invocations, preferring binaries from the
// configured SDK over the PATH
type CommandBuilder struct {
	sdkPath string
	stat    func(string) (os.FileInfo, error)
}

// NewCommandBuilder creates a builder resolving tools in sdkPath/bin
func NewCommandBuilder(sdkPath string) *CommandBuilder {
	return &CommandBuilder{
		sdkPath: sdkPath,
		stat:    os.Stat,
	}
}

// Build returns command run in dir, with its executable resolved
func (cb *CommandBuilder) Build(command []string, dir string) Command {
	return Command{
		Name: cb.Tool(command[0]),
		Args: append([]string(nil), command[1:]...),
		Dir:  dir,
	}
}

// Tool resolves name against the SDK's bin directory
func (cb *CommandBuilder) Tool(name string) string {
	if cb.sdkPath == "" || filepath.IsAbs(name) || filepath.Base(name) != name {
		return name
	}

	candidate := filepath.Join(cb.sdkPath, "bin", name)
	if _, err := cb.stat(candidate); err == nil {
		return candidate
	}

	return name
}

// DDCInput describes a single incremental compile
type DDCInput struct {
	// Precompiled framework summary, empty when not needed
	Summary string

	PackagesFile string
	Output       string
	Source       string
}

// DDCArgs builds the work request arguments for the incremental compiler
func (cb *CommandBuilder) DDCArgs(in DDCInput) []string {
	args := []string{"--modules=amd"}

	if in.Summary != "" {
		args = append(args, "-s", in.Summary)
	}

	args = append(args,
		"--packages="+in.PackagesFile,
		"-o", in.Output,
		"--module-name="+DDCModuleName,
		in.Source,
	)

	return args
}

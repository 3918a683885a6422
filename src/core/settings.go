package core

import (
	"path"
	"path/filepath"
	"strings"
)

// Settings carries the invariant configuration for one toolchain's evaluation:
// where the source tree is, where output goes, and which toolchain we are
// generating for. A single Settings is shared by every scope created under it.
type Settings struct {
	// Absolute path of the source root (the directory containing the dotfile).
	SourceRoot string
	// The build output directory, relative to the source root, e.g. "out/Debug".
	BuildDir string
	// Source-root-relative path of the build config file named by the dotfile.
	BuildConfigFile string
	// The toolchain this settings object evaluates under; empty string while
	// the default toolchain is still being determined by the build config.
	Toolchain string
	// The default toolchain label as declared by the build config file.
	DefaultToolchain string
	// Command line used to run scripts for exec_script and actions,
	// e.g. "/usr/bin/python3". May contain arguments of its own.
	ScriptExecutable string
}

// IsDefaultToolchain returns true if this settings evaluates the default toolchain.
func (s *Settings) IsDefaultToolchain() bool {
	return s.Toolchain == "" || s.Toolchain == s.DefaultToolchain
}

// AbsSourcePath converts a source-root-relative path to an absolute one.
func (s *Settings) AbsSourcePath(rel string) string {
	return filepath.Join(s.SourceRoot, filepath.FromSlash(rel))
}

// AbsBuildPath converts a build-dir-relative path to an absolute one.
func (s *Settings) AbsBuildPath(rel string) string {
	return filepath.Join(s.SourceRoot, filepath.FromSlash(s.BuildDir), filepath.FromSlash(rel))
}

// RootBuildDir returns the build directory as a //-prefixed source path.
func (s *Settings) RootBuildDir() string {
	return "//" + s.BuildDir
}

// RootGenDir returns the generated-file root for this toolchain as a //-prefixed path.
func (s *Settings) RootGenDir() string {
	return "//" + path.Join(s.BuildDir, s.toolchainSubdir(), "gen")
}

// RootOutDir returns the object-file root for this toolchain as a //-prefixed path.
func (s *Settings) RootOutDir() string {
	return "//" + path.Join(s.BuildDir, s.toolchainSubdir(), "obj")
}

// TargetGenDir returns the generated-file directory for targets declared in dir.
func (s *Settings) TargetGenDir(dir string) string {
	return "//" + path.Join(s.BuildDir, s.toolchainSubdir(), "gen", dir)
}

// TargetOutDir returns the object-file directory for targets declared in dir.
func (s *Settings) TargetOutDir(dir string) string {
	return "//" + path.Join(s.BuildDir, s.toolchainSubdir(), "obj", dir)
}

// toolchainSubdir returns the subdirectory that isolates a secondary
// toolchain's outputs. The default toolchain writes at the top level.
func (s *Settings) toolchainSubdir() string {
	if s.IsDefaultToolchain() {
		return ""
	}
	// //toolchains:arm64 -> toolchains_arm64
	tc := strings.TrimPrefix(s.Toolchain, "//")
	return strings.NewReplacer("/", "_", ":", "_").Replace(tc)
}

// RebasePath converts a //-prefixed source path into a path relative to newBase
// (also a //-prefixed source path). Paths that are not //-prefixed are returned
// unchanged; they're assumed to be system-absolute.
func (s *Settings) RebasePath(p, newBase string) string {
	if !strings.HasPrefix(p, "//") {
		return p
	}
	rel, err := filepath.Rel(filepath.FromSlash(strings.TrimPrefix(newBase, "//")), filepath.FromSlash(strings.TrimPrefix(p, "//")))
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

// SourcePath resolves a path as written in a build file in dir to the
// //-prefixed canonical form. Absolute forms (//foo) pass through; relative
// forms resolve against dir.
func SourcePath(p, dir string) string {
	if strings.HasPrefix(p, "//") {
		return p
	}
	if strings.HasPrefix(p, "/") {
		return p // system-absolute
	}
	return "//" + path.Join(dir, p)
}

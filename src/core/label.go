package core

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/please-build/gen/src/cli/logging"
)

var log = logging.Log

// A Label is a representation of an identifier of a build target, e.g.
// //base/allocator:allocator corresponds to &Label{Dir: "base/allocator", Name: "allocator"}.
// Labels can carry an explicit toolchain, written //dir:name(//toolchain:label).
//
// Labels are interned: every distinct (dir, name, toolchain) triple maps to
// exactly one *Label for the lifetime of the process, so equality is pointer
// identity and they can key maps cheaply.
type Label struct {
	// Directory of the target relative to the source root, with no leading or trailing slash.
	Dir string
	// Name of the target within its build file.
	Name string
	// The toolchain label string, or empty for the default toolchain.
	Toolchain string
}

// String returns the canonical string form, //dir:name.
// The toolchain is included only when it is set.
func (l *Label) String() string {
	s := "//" + l.Dir + ":" + l.Name
	if l.Toolchain != "" {
		s += "(" + l.Toolchain + ")"
	}
	return s
}

// ShortString abbreviates this label relative to another; targets in the same
// directory render as :name.
func (l *Label) ShortString(context *Label) string {
	if context != nil && l.Dir == context.Dir && l.Toolchain == context.Toolchain {
		return ":" + l.Name
	}
	return l.String()
}

// BuildFile returns the source-root-relative path of the build file defining this label.
func (l *Label) BuildFile() string {
	return path.Join(l.Dir, BuildFileName)
}

// NoToolchain returns the equivalent of this label in the default toolchain.
func (l *Label) NoToolchain() *Label {
	if l.Toolchain == "" {
		return l
	}
	return InternLabel(l.Dir, l.Name, "")
}

// BuildFileName is the name of the build file within each directory.
const BuildFileName = "BUILD.gn"

// The interner is sharded to reduce contention; worker threads resolve labels
// while parsing concurrently with the main thread.
const numInternShards = 16

type internShard struct {
	mu     sync.Mutex
	labels map[string]*Label
}

var interner [numInternShards]internShard

func init() {
	for i := range interner {
		interner[i].labels = map[string]*Label{}
	}
}

// InternLabel returns the canonical *Label for the given components.
func InternLabel(dir, name, toolchain string) *Label {
	key := dir + ":" + name + "(" + toolchain + ")"
	shard := &interner[xxhash.Sum64String(key)&(numInternShards-1)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if l, present := shard.labels[key]; present {
		return l
	}
	l := &Label{Dir: dir, Name: name, Toolchain: toolchain}
	shard.labels[key] = l
	return l
}

// ParseLabel parses a label string as written in a build file into its interned form.
// currentDir provides the directory that relative labels (":name" or "sub/dir")
// resolve against. A label without a toolchain suffix inherits
// defaultToolchain; an empty "()" suffix is an error.
func ParseLabel(s, currentDir, defaultToolchain string) (*Label, error) {
	toolchain := defaultToolchain
	if idx := strings.IndexByte(s, '('); idx != -1 {
		if !strings.HasSuffix(s, ")") {
			return nil, fmt.Errorf("invalid label %q: unterminated toolchain suffix", s)
		}
		toolchain = s[idx+1 : len(s)-1]
		s = s[:idx]
		if toolchain == "" {
			return nil, fmt.Errorf("invalid label %q: empty toolchain", s)
		}
	}
	dir, name, err := parseLabelParts(s, currentDir)
	if err != nil {
		return nil, err
	}
	return InternLabel(dir, name, toolchain), nil
}

// parseLabelParts splits the directory and name portions of a label string.
func parseLabelParts(s, currentDir string) (string, string, error) {
	if s == "" {
		return "", "", fmt.Errorf("empty label")
	}
	if strings.HasPrefix(s, ":") {
		if err := validateName(s[1:]); err != nil {
			return "", "", fmt.Errorf("invalid label %q: %s", s, err)
		}
		return currentDir, s[1:], nil
	}
	dir := s
	name := ""
	if idx := strings.IndexByte(s, ':'); idx != -1 {
		dir, name = s[:idx], s[idx+1:]
		if err := validateName(name); err != nil {
			return "", "", fmt.Errorf("invalid label %q: %s", s, err)
		}
	}
	if strings.HasPrefix(dir, "//") {
		dir = strings.TrimPrefix(dir, "//")
	} else {
		dir = path.Join(currentDir, dir)
	}
	dir = strings.TrimSuffix(dir, "/")
	if strings.Contains(dir, "//") || strings.HasPrefix(dir, "/") {
		return "", "", fmt.Errorf("invalid label %q: malformed directory", s)
	}
	for _, part := range strings.Split(dir, "/") {
		if part == "." || part == ".." {
			return "", "", fmt.Errorf("invalid label %q: directories may not contain %q", s, part)
		}
	}
	if name == "" {
		// //foo/bar is equivalent to //foo/bar:bar.
		name = path.Base(dir)
		if name == "." || name == "/" || name == "" {
			return "", "", fmt.Errorf("invalid label %q: no target name", s)
		}
	}
	return dir, name, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty target name")
	}
	for _, c := range name {
		if c == '/' || c == ':' || c == '(' || c == ')' {
			return fmt.Errorf("target name contains %q", c)
		}
	}
	return nil
}

// A PatternKind distinguishes the forms a label pattern can take.
type PatternKind int

const (
	// ExactMatch matches one label precisely, e.g. //foo:bar.
	ExactMatch PatternKind = iota
	// DirectoryMatch matches any target in one directory, e.g. //foo:*.
	DirectoryMatch
	// RecursiveMatch matches any target at or below a directory, e.g. //foo/*.
	RecursiveMatch
)

// A LabelPattern matches sets of labels; it's used for visibility lists and
// assert_no_deps. Supported forms:
//
//	//dir:name  :name  name       exact target
//	//dir:*     :*                all targets in one directory
//	//dir/*     *                 all targets in a directory and beneath it
type LabelPattern struct {
	Kind PatternKind
	Dir  string
	Name string
}

// ParseLabelPattern parses a pattern string relative to the given directory.
func ParseLabelPattern(s, currentDir string) (LabelPattern, error) {
	if s == "*" {
		return LabelPattern{Kind: RecursiveMatch}, nil
	}
	if strings.HasSuffix(s, "/*") {
		dir := strings.TrimSuffix(s, "/*")
		if strings.HasPrefix(dir, "//") {
			dir = strings.TrimPrefix(dir, "//")
		} else {
			dir = path.Join(currentDir, dir)
		}
		return LabelPattern{Kind: RecursiveMatch, Dir: dir}, nil
	}
	if strings.HasSuffix(s, ":*") {
		dir := strings.TrimSuffix(s, ":*")
		if strings.HasPrefix(dir, "//") {
			dir = strings.TrimPrefix(dir, "//")
		} else if dir == "" {
			dir = currentDir
		} else {
			dir = path.Join(currentDir, dir)
		}
		return LabelPattern{Kind: DirectoryMatch, Dir: dir}, nil
	}
	label, err := ParseLabel(s, currentDir, "")
	if err != nil {
		return LabelPattern{}, err
	}
	return LabelPattern{Kind: ExactMatch, Dir: label.Dir, Name: label.Name}, nil
}

// Matches returns true if the pattern admits the given label.
// Toolchains are deliberately ignored; visibility applies across toolchains.
func (p LabelPattern) Matches(l *Label) bool {
	switch p.Kind {
	case ExactMatch:
		return p.Dir == l.Dir && p.Name == l.Name
	case DirectoryMatch:
		return p.Dir == l.Dir
	default:
		return p.Dir == "" || p.Dir == l.Dir || strings.HasPrefix(l.Dir, p.Dir+"/")
	}
}

// String returns the canonical string form of the pattern.
func (p LabelPattern) String() string {
	switch p.Kind {
	case ExactMatch:
		return "//" + p.Dir + ":" + p.Name
	case DirectoryMatch:
		return "//" + p.Dir + ":*"
	default:
		if p.Dir == "" {
			return "*"
		}
		return "//" + p.Dir + "/*"
	}
}

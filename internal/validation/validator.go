// Package validation statically scans handler source before it is ever
// persisted or executed. It is a defense-in-depth layer in front of the
// interpreter sandbox: the runtime's injected capability surface is
// deliberately small, and this scan rejects obviously out-of-band
// escape attempts before execution. Validation is all-or-nothing; there
// is no warnings-only acceptance at creation time.
package validation

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"toolforge/internal/primitive"
)

// EntrypointName is the function every handler must define:
//
//	func Run(input map[string]any) (any, error)
const EntrypointName = "Run"

// AllowedImports is the stdlib subset a handler may import. It must
// stay aligned with the symbols the sandbox actually loads; anything
// else is rejected outright.
var AllowedImports = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
	"unicode/utf8":    true,

	// The injected capability surface: validated input helpers, the
	// scoped data-access handle, and small utilities. Provided by the
	// sandbox, not the real stdlib.
	"tool": true,
}

// blacklistPattern is one fixed unsafe construct. Name is what gets
// surfaced in the ValidationError; the selector pair is matched against
// call expressions in the AST.
type blacklistPattern struct {
	name string
	pkg  string
	fn   string // empty means any selector on pkg
}

// blacklist covers: dynamic code evaluation, dynamic function
// construction, dynamic module loading, process termination, subprocess
// spawning, destructive filesystem calls, and introspection of the host
// process's own path/identity.
var blacklist = []blacklistPattern{
	{name: "dynamic code evaluation", pkg: "interp", fn: "Eval"},
	{name: "dynamic function construction", pkg: "reflect", fn: "MakeFunc"},
	{name: "dynamic module loading", pkg: "plugin", fn: "Open"},
	{name: "process termination", pkg: "os", fn: "Exit"},
	{name: "process termination", pkg: "log", fn: "Fatal"},
	{name: "process termination", pkg: "log", fn: "Fatalf"},
	{name: "process termination", pkg: "syscall", fn: "Kill"},
	{name: "subprocess spawning", pkg: "exec", fn: "Command"},
	{name: "subprocess spawning", pkg: "exec", fn: "CommandContext"},
	{name: "subprocess spawning", pkg: "os", fn: "StartProcess"},
	{name: "destructive filesystem call", pkg: "os", fn: "Remove"},
	{name: "destructive filesystem call", pkg: "os", fn: "RemoveAll"},
	{name: "destructive filesystem call", pkg: "os", fn: "Truncate"},
	{name: "host identity introspection", pkg: "os", fn: "Executable"},
	{name: "host identity introspection", pkg: "runtime", fn: "Caller"},
	{name: "host identity introspection", pkg: "runtime", fn: "Callers"},
}

// forbiddenImports maps import paths to the pattern name they violate.
// These are blocked even if no call through them is detected.
var forbiddenImports = map[string]string{
	"os":              "filesystem access",
	"os/exec":         "subprocess spawning",
	"syscall":         "system call access",
	"unsafe":          "unsafe memory access",
	"plugin":          "dynamic module loading",
	"net":             "network access",
	"net/http":        "network access",
	"runtime":         "host identity introspection",
	"reflect":         "dynamic function construction",
	"io/ioutil":       "filesystem access",
	"path/filepath":   "host path introspection",
	"os/signal":       "process control",
	"runtime/debug":   "host identity introspection",
	"github.com/traefik/yaegi/interp": "dynamic code evaluation",
}

// Result carries the outcome of a static scan. Warnings are advisory
// and never block persistence; they ride along into execution history.
type Result struct {
	Warnings []string
	Imports  []string
}

// Validator performs the static handler scan.
type Validator struct{}

// New returns a handler validator.
func New() *Validator {
	return &Validator{}
}

// Validate scans handler source and returns advisory findings, or a
// *primitive.ValidationError naming the first matched unsafe pattern.
func (v *Validator) Validate(source string) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "handler.go", wrapSource(source), parser.ParseComments)
	if err != nil {
		return nil, primitive.NewValidationError("syntax error", err.Error())
	}

	res := &Result{}

	// Import gate first: a forbidden import is a rejection even when
	// nothing calls through it.
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		res.Imports = append(res.Imports, path)
		if pattern, bad := forbiddenImports[path]; bad {
			return nil, primitive.NewValidationError(pattern, fmt.Sprintf("import %q", path))
		}
		if !AllowedImports[path] {
			return nil, primitive.NewValidationError("forbidden import", fmt.Sprintf("import %q is not in the sandbox allowlist", path))
		}
	}

	var blocked *primitive.ValidationError
	hasRun := false
	hasPanic := false
	hasRecover := false

	ast.Inspect(file, func(n ast.Node) bool {
		if blocked != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.FuncDecl:
			if node.Name.Name == EntrypointName {
				hasRun = true
			}
		case *ast.CallExpr:
			if ident, ok := node.Fun.(*ast.Ident); ok {
				switch ident.Name {
				case "panic":
					hasPanic = true
				case "recover":
					hasRecover = true
				}
			}
			if sel, ok := node.Fun.(*ast.SelectorExpr); ok {
				if ident, ok := sel.X.(*ast.Ident); ok {
					for _, p := range blacklist {
						if ident.Name == p.pkg && (p.fn == "" || sel.Sel.Name == p.fn) {
							blocked = primitive.NewValidationError(p.name,
								fmt.Sprintf("call to %s.%s", ident.Name, sel.Sel.Name))
							return false
						}
					}
				}
			}
		case *ast.GoStmt:
			res.Warnings = append(res.Warnings, "handler spawns goroutines; they are abandoned at the deadline")
		}
		return true
	})

	if blocked != nil {
		return nil, blocked
	}
	if !hasRun {
		return nil, primitive.NewValidationError("missing entrypoint",
			fmt.Sprintf("handler must define func %s(input map[string]any) (any, error)", EntrypointName))
	}
	if hasPanic && !hasRecover {
		res.Warnings = append(res.Warnings, "handler calls panic() without recover(); a panic fails the invocation")
	}

	return res, nil
}

// wrapSource adds the package clause when the handler omits it, so
// authors can submit bare function bodies the way the sandbox accepts
// them.
func wrapSource(source string) string {
	if strings.Contains(source, "package main") {
		return source
	}
	return "package main\n\n" + source
}

package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	modulePath     = "shopgate"
	contextsPrefix = modulePath + "/contexts/"
	sharedPrefix   = modulePath + "/internal/shared"
	platformPrefix = modulePath + "/internal/platform"
	appPrefix      = modulePath + "/internal/app"
	contractPrefix = modulePath + "/contracts"
)

// sharedThirdParty lists the only external packages internal/shared may
// wrap. Anything heavier belongs in internal/platform.
var sharedThirdParty = []string{
	"github.com/surrealdb/surrealdb.go/contrib/rews",
}

// scanRoots are walked relative to the repository root.
var scanRoots = []string{"contexts", "internal/shared", "internal/platform"}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	var violations []violation
	for _, root := range scanRoots {
		violations = append(violations, collectViolations(root)...)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)

		fset := token.NewFileSet()
		file, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			violations = append(violations, violation{File: normalized, Line: 1, Rule: "file must parse"})
			return nil
		}
		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			for _, rule := range checkImport(normalized, importPath) {
				violations = append(violations, violation{
					File:   normalized,
					Line:   fset.Position(imp.Pos()).Line,
					Import: importPath,
					Rule:   rule,
				})
			}
		}
		return nil
	})
	return violations
}

// checkImport returns every rule the import breaks for a file at the given
// slash-separated path.
func checkImport(file string, importPath string) []string {
	parts := strings.Split(file, "/")
	switch {
	case parts[0] == "contexts" && len(parts) >= 4:
		return checkContextImport(parts[1], parts[2], parts[3], importPath)
	case hasPrefix(file, "internal/shared"):
		return checkSharedImport(importPath)
	case hasPrefix(file, "internal/platform"):
		return checkPlatformImport(importPath)
	}
	return nil
}

func checkContextImport(contextName string, serviceName string, layer string, importPath string) []string {
	var broken []string
	own := fmt.Sprintf("%s%s/%s", contextsPrefix, contextName, serviceName)

	if strings.HasPrefix(importPath, contextsPrefix) && !hasPrefix(importPath, own) {
		broken = append(broken, "cross-module imports are forbidden")
	}

	var allowed []string
	switch layer {
	case "domain":
		allowed = []string{own + "/domain"}
	case "ports":
		allowed = []string{own + "/domain", contractPrefix}
	case "application":
		allowed = []string{own + "/application", own + "/domain", own + "/ports", contractPrefix, sharedPrefix}
	default:
		if hasPrefix(importPath, appPrefix) {
			broken = append(broken, layer+" must not import the composition root")
		}
		return broken
	}

	if strings.Contains(importPath, "/adapters/") {
		broken = append(broken, layer+" must not import adapters")
	}
	if hasPrefix(importPath, platformPrefix) || hasPrefix(importPath, appPrefix) {
		broken = append(broken, layer+" must not import runtime infrastructure")
	}
	if !isStdlib(importPath) && !isAllowed(importPath, allowed) {
		broken = append(broken, layer+" import is outside explicit allowlist")
	}
	return broken
}

// checkSharedImport keeps internal/shared importable from every layer: it
// may use the standard library and the listed wrappers, nothing of ours.
func checkSharedImport(importPath string) []string {
	if hasPrefix(importPath, sharedPrefix) {
		return nil
	}
	if strings.HasPrefix(importPath, modulePath+"/") {
		return []string{"shared helpers must not import module packages"}
	}
	if !isStdlib(importPath) && !isAllowed(importPath, sharedThirdParty) {
		return []string{"shared helpers may only wrap allowlisted libraries"}
	}
	return nil
}

// checkPlatformImport lets transports speak the replicated entity vocabulary
// but never reach into application logic or adapters.
func checkPlatformImport(importPath string) []string {
	if hasPrefix(importPath, appPrefix) {
		return []string{"platform must not import the composition root"}
	}
	if strings.HasPrefix(importPath, contextsPrefix) && !strings.Contains(importPath, "/domain/") {
		return []string{"platform may only import context domain packages"}
	}
	return nil
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, modulePath+"/") {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}

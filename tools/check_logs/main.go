// check_logs reports slog calls that break the project's logging
// conventions: the message must be a lowercase string literal without a
// trailing period, and attributes must be string-literal keys followed by a
// value, or slog.Attr constructors.
//
// Usage:
//
//	go run ./tools/check_logs [dir ...]
//
// A call can be exempted with a "//logcheck:ignore <reason>" comment on the
// same line or the line above.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const ignoreMarker = "logcheck:ignore"

var defaultDirs = []string{"internal", "."}

type ignoreTag struct {
	line      int
	hasReason bool
}

type violation struct {
	line    int
	column  int
	message string
}

// msgIndex is the position of the message argument per slog function.
var msgIndex = map[string]int{
	"Debug":        0,
	"Info":         0,
	"Warn":         0,
	"Error":        0,
	"DebugContext": 1,
	"InfoContext":  1,
	"WarnContext":  1,
	"ErrorContext": 1,
}

var attrConstructors = map[string]struct{}{
	"Any": {}, "Bool": {}, "Duration": {}, "Float64": {}, "Group": {},
	"Int": {}, "Int64": {}, "String": {}, "Time": {}, "Uint64": {},
}

func main() {
	dirs := os.Args[1:]
	if len(dirs) == 0 {
		dirs = defaultDirs
	}

	files, err := collectGoFiles(dirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to collect files: %v\n", err)
		os.Exit(1)
	}

	fset := token.NewFileSet()
	total := 0
	for _, path := range files {
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", path, err)
			os.Exit(1)
		}
		relPath := filepath.ToSlash(path)
		violations, warnings := analyzeFile(fset, file, collectIgnoreTags(fset, file))
		for _, line := range warnings {
			fmt.Printf("WARN %s:%d: //%s without reason\n", relPath, line, ignoreMarker)
		}
		for _, v := range violations {
			fmt.Printf("%s:%d:%d: %s\n", relPath, v.line, v.column, v.message)
		}
		total += len(violations)
	}

	if total > 0 {
		os.Exit(1)
	}
}

// collectGoFiles walks dirs. "." is not descended into, so the repository
// root contributes only its own files.
func collectGoFiles(dirs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, root := range dirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (root == "." || strings.HasPrefix(d.Name(), "_")) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) == ".go" {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func analyzeFile(fset *token.FileSet, file *ast.File, tags map[int][]ignoreTag) ([]violation, []int) {
	var violations []violation
	var warnings []int
	warned := make(map[int]struct{})

	report := func(pos token.Pos, msg string) {
		p := fset.Position(pos)
		ignored, warnLine := ignoreStatus(tags, p.Line)
		if ignored {
			if _, ok := warned[warnLine]; warnLine > 0 && !ok {
				warned[warnLine] = struct{}{}
				warnings = append(warnings, warnLine)
			}
			return
		}
		violations = append(violations, violation{line: p.Line, column: p.Column, message: msg})
	}

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		idx, ok := slogCall(call.Fun)
		if !ok || idx >= len(call.Args) {
			return true
		}
		checkMessage(call.Args[idx], report)
		checkAttrs(call.Args[idx+1:], report)
		return true
	})
	return violations, warnings
}

func slogCall(fun ast.Expr) (int, bool) {
	sel, ok := fun.(*ast.SelectorExpr)
	if !ok {
		return 0, false
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok || id.Name != "slog" {
		return 0, false
	}
	idx, ok := msgIndex[sel.Sel.Name]
	return idx, ok
}

func checkMessage(arg ast.Expr, report func(token.Pos, string)) {
	msg, ok := stringLiteral(arg)
	if !ok {
		report(arg.Pos(), "log message must be a string literal")
		return
	}
	if msg == "" {
		report(arg.Pos(), "log message must not be empty")
		return
	}
	if r, _ := utf8.DecodeRuneInString(msg); unicode.IsUpper(r) {
		report(arg.Pos(), fmt.Sprintf("log message %q must start lowercase", msg))
	}
	if strings.HasSuffix(msg, ".") {
		report(arg.Pos(), fmt.Sprintf("log message %q must not end with a period", msg))
	}
}

func checkAttrs(args []ast.Expr, report func(token.Pos, string)) {
	for i := 0; i < len(args); i++ {
		arg := unwrapExpr(args[i])
		if isAttrConstructor(arg) {
			continue
		}
		if _, ok := stringLiteral(arg); !ok {
			report(arg.Pos(), "log attribute key must be a string literal")
			return
		}
		if i+1 >= len(args) {
			report(arg.Pos(), "log attribute key has no value")
			return
		}
		i++
	}
}

func isAttrConstructor(expr ast.Expr) bool {
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	id, ok := sel.X.(*ast.Ident)
	if !ok || id.Name != "slog" {
		return false
	}
	_, ok = attrConstructors[sel.Sel.Name]
	return ok
}

func stringLiteral(expr ast.Expr) (string, bool) {
	lit, ok := unwrapExpr(expr).(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}

func unwrapExpr(expr ast.Expr) ast.Expr {
	for {
		paren, ok := expr.(*ast.ParenExpr)
		if !ok {
			return expr
		}
		expr = paren.X
	}
}

func collectIgnoreTags(fset *token.FileSet, file *ast.File) map[int][]ignoreTag {
	tagsByLine := make(map[int][]ignoreTag)
	for _, group := range file.Comments {
		for _, c := range group.List {
			baseLine := fset.Position(c.Slash).Line
			for i, lineText := range commentLines(c.Text) {
				hasIgnore, hasReason := parseIgnoreComment(lineText)
				if !hasIgnore {
					continue
				}
				line := baseLine + i
				tagsByLine[line] = append(tagsByLine[line], ignoreTag{line: line, hasReason: hasReason})
			}
		}
	}
	return tagsByLine
}

func commentLines(text string) []string {
	if strings.HasPrefix(text, "//") {
		return []string{strings.TrimSpace(strings.TrimPrefix(text, "//"))}
	}
	if strings.HasPrefix(text, "/*") {
		trimmed := strings.TrimPrefix(text, "/*")
		trimmed = strings.TrimSuffix(trimmed, "*/")
		return strings.Split(trimmed, "\n")
	}
	return []string{text}
}

func parseIgnoreComment(text string) (bool, bool) {
	idx := strings.Index(text, ignoreMarker)
	if idx < 0 {
		return false, false
	}
	reason := strings.TrimSpace(text[idx+len(ignoreMarker):])
	return true, reason != ""
}

// ignoreStatus reports whether targetLine is exempted and, when the
// exemption has no reason, the line of the bare marker.
func ignoreStatus(tagsByLine map[int][]ignoreTag, targetLine int) (bool, int) {
	hasIgnore := false
	hasReason := false
	noReasonLine := 0

	for _, line := range []int{targetLine, targetLine - 1} {
		for _, t := range tagsByLine[line] {
			hasIgnore = true
			if t.hasReason {
				hasReason = true
				continue
			}
			if noReasonLine == 0 {
				noReasonLine = t.line
			}
		}
	}

	if !hasIgnore {
		return false, 0
	}
	if hasReason {
		return true, 0
	}
	return true, noReasonLine
}

// Package sandbox evaluates operator-supplied Go snippets against a live
// page. Snippets run in a yaegi interpreter that can only see the
// inspector package: no stdlib symbols, no source filesystem, no stdio.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"reflect"
	"strconv"
	"strings"
	"testing/fstest"

	"github.com/traefik/yaegi/interp"

	"recorder/internal/browser"
	"recorder/internal/logging"
)

// ErrRejected marks code that failed static validation. Nothing was run.
var ErrRejected = errors.New("code rejected")

const importPath = "inspector"

// symbols is the whole surface visible to snippets.
var symbols = interp.Exports{
	importPath + "/" + importPath: {
		"Page":    reflect.ValueOf((*Page)(nil)),
		"Locator": reflect.ValueOf((*Locator)(nil)),
		"Result":  reflect.ValueOf(Result),
	},
}

type runFunc = func(*Page) (interface{}, error)

// Wrap turns a snippet into a complete source file defining Run. A single
// expression becomes the return value; anything else is used as the body.
func Wrap(code string) string {
	code = strings.TrimSpace(code)
	var body string
	if _, err := parser.ParseExpr(code); err == nil {
		body = "\treturn " + importPath + ".Result(" + code + ")\n"
	} else {
		body = code + "\n\treturn nil, nil\n"
	}
	return "package main\n\nimport " + strconv.Quote(importPath) + "\n\n" +
		"func Run(page *" + importPath + ".Page) (interface{}, error) {\n" + body + "}\n"
}

// Validate parses src and checks its shape: exactly one import, the
// inspector package, and exactly one top-level declaration, func Run.
func Validate(src string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "snippet.go", src, parser.SkipObjectResolution)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if len(f.Imports) != 1 {
		return fmt.Errorf("%w: only the %s package may be imported", ErrRejected, importPath)
	}
	if path, _ := strconv.Unquote(f.Imports[0].Path.Value); path != importPath {
		return fmt.Errorf("%w: import %s is not allowed", ErrRejected, f.Imports[0].Path.Value)
	}
	if f.Imports[0].Name != nil {
		return fmt.Errorf("%w: the %s import cannot be renamed", ErrRejected, importPath)
	}

	funcs := 0
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.IMPORT {
				return fmt.Errorf("%w: top-level %s declarations are not allowed", ErrRejected, d.Tok)
			}
		case *ast.FuncDecl:
			if d.Recv != nil || d.Name.Name != "Run" {
				return fmt.Errorf("%w: unexpected function %s", ErrRejected, d.Name.Name)
			}
			funcs++
		}
	}
	if funcs != 1 {
		return fmt.Errorf("%w: expected exactly one Run function, found %d", ErrRejected, funcs)
	}
	return nil
}

// Evaluator runs snippets. It holds no per-run state and is safe for
// concurrent use; every Run gets a fresh interpreter.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Run validates and evaluates code against page. Browser calls made by the
// snippet are bound to ctx, and Run returns as soon as ctx is done. A
// snippet spinning without touching the page keeps its goroutine until it
// finishes on its own.
func (e *Evaluator) Run(ctx context.Context, page browser.Page, code string) (any, error) {
	src := Wrap(code)
	if err := Validate(src); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{
		Stdin:                strings.NewReader(""),
		Stdout:               io.Discard,
		Stderr:               io.Discard,
		SourcecodeFilesystem: fstest.MapFS{},
	})
	if err := i.Use(symbols); err != nil {
		return nil, fmt.Errorf("failed to load %s symbols: %w", importPath, err)
	}
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("compiling snippet: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	v, err := i.Eval("main.Run")
	if err != nil {
		return nil, fmt.Errorf("Run function not found: %w", err)
	}
	run, ok := v.Interface().(runFunc)
	if !ok {
		return nil, fmt.Errorf("%w: Run has an unexpected signature", ErrRejected)
	}

	type outcome struct {
		val any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.SandboxWarn("snippet panicked: %v", r)
				done <- outcome{err: fmt.Errorf("snippet panicked: %v", r)}
			}
		}()
		val, err := run(newPage(ctx, page))
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		logging.SandboxDebug("snippet abandoned: %v", ctx.Err())
		return nil, fmt.Errorf("snippet execution: %w", ctx.Err())
	}
}

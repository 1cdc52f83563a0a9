package webapi

import (
	"fmt"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

// ScriptKind classifies a <script> element by its type attribute.
type ScriptKind int

const (
	ScriptClassic ScriptKind = iota
	ScriptModule
	ScriptTypeScript
	// ScriptData is a non-executable block such as application/json.
	ScriptData
)

// ClassifyScript maps a script type attribute to a ScriptKind.
func ClassifyScript(typeAttr string) ScriptKind {
	t := strings.ToLower(strings.TrimSpace(typeAttr))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "", "text/javascript", "application/javascript", "text/ecmascript", "application/ecmascript":
		return ScriptClassic
	case "module":
		return ScriptModule
	case "text/typescript", "application/typescript", "ts":
		return ScriptTypeScript
	default:
		return ScriptData
	}
}

// TransformScript lowers module and TypeScript sources into a classic script
// the engine can evaluate. Module imports are not resolved; an inline module
// runs as an IIFE in its own scope.
func TransformScript(source string, kind ScriptKind, sourcefile string) (string, error) {
	var loader esbuild.Loader
	switch kind {
	case ScriptClassic:
		return source, nil
	case ScriptModule:
		loader = esbuild.LoaderJS
	case ScriptTypeScript:
		loader = esbuild.LoaderTS
	default:
		return "", fmt.Errorf("script kind %d is not executable", kind)
	}

	result := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:     loader,
		Format:     esbuild.FormatIIFE,
		Target:     esbuild.ES2020,
		Sourcefile: sourcefile,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("transforming %s: %s", sourcefile, strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}

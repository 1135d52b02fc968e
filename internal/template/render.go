// Package template implements the control plane's narrow template
// language: "{{ dot.path.expr | pipe | pipe2 }}" substitution against a
// nested map/slice value tree, plus a tiny conditional-expression
// evaluator for Workflow conditional steps.
//
// This is deliberately not a general templating runtime (no loops, no
// user-defined functions, no includes) — the same restraint this
// package's ancestor (a fixed-pairs strings.Replacer over a hardcoded
// variable list) took, just generalized so array indexing and pipes work
// against arbitrary step output, the way the original Rust
// render_template/evaluate_condition did against serde_json::Value.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var exprPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Render substitutes every "{{ expr }}" occurrence in body by evaluating
// expr against data. Expressions that fail to resolve (missing path, with
// no "| default" pipe) are substituted with the empty string, mirroring
// the original's tolerant rendering for optional template fields.
func Render(body string, data map[string]any) string {
	return exprPattern.ReplaceAllStringFunc(body, func(match string) string {
		inner := exprPattern.FindStringSubmatch(match)[1]
		val, err := Eval(inner, data)
		if err != nil {
			return ""
		}
		return toDisplayString(val)
	})
}

// Eval evaluates a single "path | pipe | pipe2" expression (without the
// surrounding "{{ }}") against data and returns the resulting value.
func Eval(expr string, data map[string]any) (any, error) {
	parts := strings.Split(expr, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	path := parts[0]
	pipes := parts[1:]

	val, err := getByPath(data, path)
	hadValue := err == nil

	for _, p := range pipes {
		name, arg, _ := strings.Cut(p, " ")
		name = strings.TrimSpace(name)
		arg = strings.Trim(strings.TrimSpace(arg), `"'`)
		switch name {
		case "default":
			if !hadValue || val == nil || val == "" {
				val = arg
				hadValue = true
			}
		case "toJSON":
			b, jerr := json.Marshal(val)
			if jerr != nil {
				return nil, jerr
			}
			val = string(b)
			hadValue = true
		case "upper":
			val = strings.ToUpper(toDisplayString(val))
		case "lower":
			val = strings.ToLower(toDisplayString(val))
		default:
			return nil, fmt.Errorf("unknown pipe %q", name)
		}
	}

	if !hadValue {
		return nil, fmt.Errorf("path %q not found", path)
	}
	return val, nil
}

// EvalDisplay evaluates expr like Eval, but renders the result to its
// display string — used where a whole field is one expression (e.g. a
// Workflow output's Value) rather than text interpolated with "{{ }}".
func EvalDisplay(expr string, data map[string]any) (string, error) {
	val, err := Eval(expr, data)
	if err != nil {
		return "", err
	}
	return toDisplayString(val), nil
}

// getByPath walks a dot-separated path, supporting numeric array
// indices as a path segment (e.g. "steps.check.items.0.name").
func getByPath(data map[string]any, path string) (any, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	segments := strings.Split(path, ".")
	var cur any = data

	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("missing key %q", seg)
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("invalid index %q", seg)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot index into %T with %q", cur, seg)
		}
	}
	return cur, nil
}

func toDisplayString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// EvaluateCondition evaluates a conditional step's "<path> <op> <literal>"
// expression, requiring exactly three whitespace-separated tokens, as in
// the original's evaluate_condition. Supported operators: ==, !=.
func EvaluateCondition(expr string, data map[string]any) (bool, error) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return false, fmt.Errorf("condition must have exactly 3 tokens, got %d", len(fields))
	}
	path, op, literal := fields[0], fields[1], strings.Trim(fields[2], `"'`)

	val, err := getByPath(data, path)
	if err != nil {
		return false, err
	}
	actual := toDisplayString(val)

	switch op {
	case "==":
		return actual == literal, nil
	case "!=":
		return actual != literal, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

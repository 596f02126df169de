package env

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AmirDavoodi/MPEC/internal/arith"
)

// #region factory
// New builds the environment named by variant for expr and target.
func New(variant Variant, expr string, target int) (Environment, error) {
	var (
		e   Environment
		err error
	)
	switch variant {
	case VariantRecursive:
		e, err = NewRecursiveEnv(expr, target)
	case VariantGrouping:
		e, err = NewGroupingEnv(expr, target)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ParseVariant maps a user-supplied name onto a Variant.
func ParseVariant(name string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(name))); v {
	case VariantRecursive, VariantGrouping:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// #endregion factory

// #region helpers
// innermostGroup locates the last '(' in expr and its matching ')'.
// end is inclusive. ok is false when there is no complete group.
func innermostGroup(expr string) (start, end int, ok bool) {
	start = strings.LastIndex(expr, "(")
	if start == -1 {
		return 0, 0, false
	}
	depth := 1
	for i := start + 1; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return start, i, true
			}
		}
	}
	return 0, 0, false
}

// splitOperands strips all parentheses and splits once on '+'.
func splitOperands(expr string) (a, b int, err error) {
	flat := stripParens(expr)
	left, right, found := strings.Cut(flat, "+")
	if !found {
		return 0, 0, fmt.Errorf("%w: no '+' in %q", arith.ErrSyntax, expr)
	}
	if a, err = arith.Literal(left); err != nil {
		return 0, 0, err
	}
	if b, err = arith.Literal(right); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func stripParens(expr string) string {
	return strings.NewReplacer("(", "", ")", "").Replace(expr)
}

func trimAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// isTarget reports whether expr is the bare integer target.
func isTarget(expr string, target int) bool {
	v, err := arith.Literal(expr)
	return err == nil && v == target
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// #endregion helpers

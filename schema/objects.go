package schema

import "strings"

// Object names inside a run subtree. On, off and diff objects are named by
// quantity; the rest carry a variant or a curve direction.

// AlphaName names the alpha map of a variant.
func AlphaName(v Variant) string {
	return string(v)
}

// ExcessName names the 2D excess map of a variant.
func ExcessName(v Variant) string {
	return "excess/" + string(v)
}

// ExcessErrorName names the 2D excess error map of a variant.
func ExcessErrorName(v Variant) string {
	return "error/" + string(v)
}

// SignificanceMapName names the significance map of a variant.
func SignificanceMapName(v Variant) string {
	return "map/" + string(v)
}

// SignificanceDistName names the significance distribution of a variant.
func SignificanceDistName(v Variant) string {
	return "dist/" + string(v)
}

// QFactorLowName names the low-bound cut curve of a quantity.
func QFactorLowName(q Quantity) string {
	return string(q) + "/low"
}

// QFactorHighName names the high-bound cut curve of a quantity.
func QFactorHighName(q Quantity) string {
	return string(q) + "/high"
}

// SplitQFactorName returns the quantity and direction of a curve name.
func SplitQFactorName(name string) (Quantity, string, bool) {
	i := strings.LastIndexByte(name, '/')
	if i <= 0 {
		return "", "", false
	}
	dir := name[i+1:]
	if dir != "low" && dir != "high" {
		return "", "", false
	}
	return Quantity(name[:i]), dir, true
}

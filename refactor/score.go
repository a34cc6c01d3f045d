// Package refactor derives the refactor-score tags enumerated in
// spec.md section 6. Functions are scored by the parser at parse time,
// classes by the Graph Builder once it knows a class's method count, and
// modules by the exporter from the function count the Graph Builder
// stores on each module (spec.md 4.3).
package refactor

// Function buckets a function's refactor score by body line count.
func Function(bodyLines int) string {
	switch {
	case bodyLines < 50:
		return "small"
	case bodyLines < 100:
		return "good"
	case bodyLines < 200:
		return "medium_function"
	case bodyLines < 400:
		return "large_function"
	default:
		return "monster_function"
	}
}

// Class buckets a class's refactor score by method count.
func Class(methodCount int) string {
	switch {
	case methodCount < 10:
		return "simple"
	case methodCount < 20:
		return "good"
	case methodCount < 30:
		return "medium_class"
	case methodCount < 50:
		return "large_class"
	default:
		return "god_class"
	}
}

// Module buckets a module's refactor score by function count.
func Module(functionCount int) string {
	switch {
	case functionCount < 3:
		return "simple"
	case functionCount < 10:
		return "good"
	case functionCount < 20:
		return "moderate_functions"
	case functionCount < 30:
		return "many_functions"
	default:
		return "excessive_functions"
	}
}

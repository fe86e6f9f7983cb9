// Package rewrite turns engine findings into source edits and applies them.
//
// An Edit inserts one safety annotation on a declaration and removes any
// safety annotations it already carries. Edits are collected per unit in a
// Batch and applied all at once: either every edit for a unit lands or the
// unit is left untouched.
package rewrite

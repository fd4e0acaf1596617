// Package translation implements the workflow stage that generates
// per-language translations for every transcript cue.
package translation

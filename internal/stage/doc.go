// Package stage defines the handler contract shared by every workflow
// stage. The workflow manager drives stages exclusively through this
// package so stage implementations stay decoupled from each other.
package stage

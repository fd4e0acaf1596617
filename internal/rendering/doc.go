// Package rendering implements the workflow stage that projects a fully
// translated episode into the Markdown document human reviewers edit.
package rendering

// Package chaptering implements the workflow stage that groups a proofread
// transcript into chapters with an LLM.
package chaptering

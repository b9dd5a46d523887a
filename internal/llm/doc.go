// Package llm contains adapters for external natural-language completion
// services. Replies are free text; the command interpreter decides whether a
// reply is trustworthy.
package llm

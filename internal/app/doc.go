// Package app provides the application service layer.
//
// Orchestrates the HTTP-facing use cases: question lifecycle, voting,
// research papers, feedback, participant identity. Sits between HTTP handlers
// and domain repositories. Depends on domain interfaces, not concrete
// implementations.
package app

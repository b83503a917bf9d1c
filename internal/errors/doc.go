// Package errors defines the error taxonomy shared by the host packages.
//
// Expected failure modes are modeled either as sentinel errors (checked with
// errors.Is) or typed errors carrying context (checked with errors.As). The
// root toolhost package re-exports everything here for callers.
package errors

package cli

import "github.com/repolex-dev/repolex/rerrors"

// Exit codes returned by the repolex binary. 0 and 1 follow the usual
// Unix convention (success, unspecified failure); 2 and up disambiguate
// by rerrors.Kind so scripts can branch on failure category without
// scraping stderr.
const (
	ExitSuccess       = 0
	ExitUnknown       = 1
	ExitValidation    = 2
	ExitSecurity      = 3
	ExitSource        = 4
	ExitGit           = 5
	ExitStore         = 6
	ExitNetwork       = 7
	ExitExport        = 8
	ExitConfiguration = 9
)

// exitCodeFor maps an error's rerrors.Kind to a process exit code. A nil
// err maps to ExitSuccess; an error with no recognized Kind maps to
// ExitUnknown.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch rerrors.KindOf(err) {
	case rerrors.Validation:
		return ExitValidation
	case rerrors.Security:
		return ExitSecurity
	case rerrors.Source:
		return ExitSource
	case rerrors.Git:
		return ExitGit
	case rerrors.Store:
		return ExitStore
	case rerrors.Network:
		return ExitNetwork
	case rerrors.Export:
		return ExitExport
	case rerrors.Configuration:
		return ExitConfiguration
	default:
		return ExitUnknown
	}
}

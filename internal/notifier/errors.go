package notifier

import "github.com/supercheck/core/internal/repo"

func unsupportedProviderError(t repo.NotifierType) error {
	return &unsupportedProviderErr{t: t}
}

type unsupportedProviderErr struct{ t repo.NotifierType }

func (e *unsupportedProviderErr) Error() string {
	return "no transport registered for provider type " + string(e.t)
}

package fetch

import (
	"errors"

	"github.com/Sriram-PR/corpus-crawler/pkg/models"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// FailureCode maps a transport-level error to one of the fetch-failure status codes (600-606).
func FailureCode(err error) int {
	switch {
	case err == nil:
		return models.FetchFailureUnknown
	case errors.Is(err, ErrTooManyRedirects):
		return models.FetchFailureTooManyRedirects
	case errors.Is(err, utils.ErrResponseBodyRead):
		return models.FetchFailureBodyRead
	}

	switch utils.NetworkFailureClass(err) {
	case utils.NetworkDNSLookup:
		return models.FetchFailureDNS
	case utils.NetworkTimeout:
		return models.FetchFailureTimeout
	case utils.NetworkConnectionRefused:
		return models.FetchFailureConnectionRefused
	case utils.NetworkTLS:
		return models.FetchFailureTLS
	case utils.NetworkTooManyRedirects:
		return models.FetchFailureTooManyRedirects
	}
	return models.FetchFailureUnknown
}

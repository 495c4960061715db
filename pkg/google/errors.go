package google

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/timebox/pkg/errs"
)

// classify maps API and token errors onto the errs taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return errs.AuthExpired(fmt.Errorf("%s: %w", op, err))
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return errs.AuthExpired(fmt.Errorf("%s: %w", op, err))
		case http.StatusForbidden:
			if rateLimited(gerr) {
				return errs.Transient(fmt.Errorf("%s: %w", op, err))
			}
			return errs.AuthExpired(fmt.Errorf("%s: %w", op, err))
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %v: %w", op, err, errs.ErrNotFound)
		}
	}
	return errs.Transient(fmt.Errorf("%s: %w", op, err))
}

func rateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}

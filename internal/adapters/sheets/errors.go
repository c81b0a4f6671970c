package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"google.golang.org/api/googleapi"
)

// Failure taxonomy for remote-table calls. Callers classify with
// errors.Is; the wrapped error keeps the transport detail for logging.
var (
	ErrAuthExpired        = errors.New("authentication expired")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrNetworkUnavailable = errors.New("network unavailable")
)

// classify maps a raw transport error onto the failure taxonomy.
// PRE: err is non-nil
// POST: Returns a sentinel-wrapped error for recognised classes, the
// original error otherwise
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401:
			return fmt.Errorf("%w: %v", ErrAuthExpired, err)
		case 403:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case 404:
			return fmt.Errorf("%w: %v", ErrSheetNotFound, err)
		}
		return err
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	return err
}

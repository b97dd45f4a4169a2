package hcloud

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stackzner/internal/deploy"
)

// Classify maps an hcloud API failure into the deploy error taxonomy so the
// executor and rollback controller can decide about retries. Errors that are
// already classified pass through unchanged, which lets validation failures
// deep in the adapter stay permanent.
//
// Uniqueness violations surface as AlreadyExistsError. Invalid input and
// missing referenced resources cannot be fixed by retrying and are marked
// permanent. Everything else is worth another attempt and is marked
// transient: rate limits, locked resources, conflicts, and transport
// failures all clear up on their own.
func Classify(resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case deploy.IsTransient(err), deploy.IsPermanent(err), deploy.IsAlreadyExists(err):
		return err
	case isUniquenessError(err):
		return &deploy.AlreadyExistsError{Resource: resource}
	case isInvalidParameter(err):
		return deploy.Permanent(err)
	default:
		return deploy.Transient(err)
	}
}

// isInvalidParameter checks if an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
		hcloud.ErrorCodeForbidden,
		hcloud.ErrorCodeUnauthorized,
	)
}

// isUniquenessError checks if an error reports a name collision with an
// existing resource.
func isUniquenessError(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeUniquenessError)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

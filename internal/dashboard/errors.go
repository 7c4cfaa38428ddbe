package dashboard

import (
	"context"
	"errors"
	"os"

	"github.com/vinodismyname/sidpol/internal/acquire"
	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/datasets"
	"github.com/vinodismyname/sidpol/internal/security"
	"github.com/vinodismyname/sidpol/internal/store"
	"github.com/vinodismyname/sidpol/pkg/mcperr"
)

// Classify maps an error from this package or its dependencies to the code
// reported to clients.
func Classify(err error) mcperr.Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.Timeout
	case errors.Is(err, datasets.ErrHandleNotFound):
		return mcperr.InvalidHandle
	case errors.Is(err, ErrNoDataset), errors.Is(err, dataset.ErrSourceNotFound), errors.Is(err, security.ErrNotFound):
		return mcperr.SourceAbsent
	case errors.Is(err, security.ErrNotAllowed), errors.Is(err, os.ErrPermission):
		return mcperr.PermissionDenied
	case errors.Is(err, dataset.ErrUnsupportedFormat), errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.UnsupportedFormat
	case errors.Is(err, dataset.ErrNotTabular):
		return mcperr.NotTabular
	case errors.Is(err, store.ErrReadOnlyQuery):
		return mcperr.ReadOnlySQL
	case errors.Is(err, ErrStoreDisabled):
		return mcperr.SQLDisabled
	case errors.Is(err, acquire.ErrNoCSVLink):
		return mcperr.FetchFailed
	}
	return mcperr.AnalysisFailed
}

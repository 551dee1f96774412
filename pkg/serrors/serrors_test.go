package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AbsoluteXYZero/Bookmark-Manager-Zero-Chrome-sub000/pkg/serrors"
)

type customError struct{ msg string }

func (e customError) Error() string { return e.msg }

func TestDefaultKindsDistinct(t *testing.T) {
	kinds := []serrors.Kind{
		serrors.ErrValidation,
		serrors.ErrNetwork,
		serrors.ErrSourceDownload,
		serrors.ErrRateLimited,
		serrors.ErrConflict,
		serrors.ErrNotFound,
		serrors.ErrUnauthorized,
		serrors.ErrBadRequest,
		serrors.ErrTimeout,
		serrors.ErrInternal,
	}
	seen := map[serrors.Kind]bool{}
	for i, k := range kinds {
		require.NotNil(t, k, "kind at index %d is nil", i)
		require.False(t, seen[k], "kind at index %d is duplicate: %v", i, k)
		seen[k] = true
	}

	require.NotEqual(t, serrors.ErrValidation, serrors.ErrNetwork)
}

func TestErrorFormatting(t *testing.T) {
	base := errors.New("connection refused")

	e1 := serrors.With(serrors.ErrValidation, "scheme %q is not allowed", "javascript")
	require.Equal(t, `scheme "javascript" is not allowed`, e1.Error())

	e2 := serrors.Wrap(serrors.ErrNetwork, base, "probing URL")
	require.Equal(t, "probing URL: connection refused", e2.Error())

	e3 := serrors.KindOnly(serrors.ErrRateLimited)
	require.Equal(t, "RATE_LIMITED", e3.Error())
}

func TestIsMatchesKindAndWrapped(t *testing.T) {
	base := customError{"root cause"}
	e := serrors.Wrap(serrors.ErrSourceDownload, base, "fetching blocklist")

	require.ErrorIs(t, e, serrors.ErrSourceDownload)
	require.ErrorIs(t, e, base)
	require.NotErrorIs(t, e, serrors.ErrNetwork, "errors.Is should not match a different kind")
}

func TestAsMatchesKindAndWrapped(t *testing.T) {
	base := &customError{"root cause"}
	e := serrors.Wrap(serrors.ErrRateLimited, base, "reputation API")

	var k serrors.Kind
	require.ErrorAs(t, e, &k, "errors.As should extract Kind")
	require.Equal(t, serrors.ErrRateLimited, k)

	var ce *customError
	require.ErrorAs(t, e, &ce, "errors.As should extract wrapped error type")
	require.Equal(t, base, ce)
}

func TestAccessors(t *testing.T) {
	base := errors.New("boom")
	e := serrors.Wrap(serrors.ErrConflict, base, "scan already running")
	require.Equal(t, serrors.ErrConflict, e.Kind())
	require.Equal(t, "scan already running", e.Message())
	require.Equal(t, base, e.Cause())
}

package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	errs "mediafetch/pkg/errors"
)

func TestTally(t *testing.T) {
	outcomes := []FetchOutcome{
		{Status: StatusSucceeded, BytesWritten: 10},
		{Status: StatusSucceeded, BytesWritten: 5},
		{Status: StatusFailedPermanent, LastError: errs.PermanentHTTP(404, "404 Not Found")},
		{Status: StatusFailedAfterRetries, LastError: errs.Network(errors.New("timeout"))},
		{Status: StatusCancelled},
	}

	s, f, c, b := Tally(outcomes)
	assert.Equal(t, 2, s)
	assert.Equal(t, 2, f)
	assert.Equal(t, 1, c)
	assert.Equal(t, int64(15), b)
}

func TestOutcomeKind(t *testing.T) {
	assert.Equal(t, errs.ErrorType(""), FetchOutcome{Status: StatusSucceeded}.Kind())
	assert.Equal(t, errs.ErrorTypePermanentHTTP, FetchOutcome{LastError: errs.PermanentHTTP(403, "403 Forbidden")}.Kind())
	assert.Equal(t, "", FetchOutcome{}.ErrorMessage())
}

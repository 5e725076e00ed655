package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestWrapKinds(t *testing.T) {
	base := errors.New("boom")

	cases := []struct {
		name string
		wrap func(error) error
		kind error
	}{
		{"storage", WrapStorage, ErrStorage},
		{"retrieval", WrapRetrieval, ErrRetrieval},
		{"extraction", WrapExtraction, ErrExtractionParse},
		{"auth", WrapAuth, ErrAuth},
		{"delivery", WrapDelivery, ErrDelivery},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.wrap(base)
			assert.ErrorIs(t, err, tc.kind)
			assert.ErrorIs(t, err, base)
			assert.NoError(t, tc.wrap(nil))

			// kind survives further fmt wrapping
			outer := fmt.Errorf("turn: %w", err)
			assert.ErrorIs(t, outer, tc.kind)
		})
	}
}

func TestWrapKinds_DoNotCrossMatch(t *testing.T) {
	err := WrapRetrieval(errors.New("embed down"))
	assert.NotErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrDelivery)
}

func TestWrapKinds_Idempotent(t *testing.T) {
	err := WrapStorage(errors.New("locked"))
	again := WrapStorage(err)
	assert.Same(t, err, again)
}

func TestWrapRedis(t *testing.T) {
	notFound := WrapRedis(redis.Nil)
	assert.Equal(t, http.StatusNotFound, StatusOf(notFound))
	assert.NotErrorIs(t, notFound, ErrStorage)

	down := WrapRedis(errors.New("connection refused"))
	assert.Equal(t, http.StatusBadGateway, StatusOf(down))
	assert.ErrorIs(t, down, ErrStorage)
}

func TestAppError_As(t *testing.T) {
	err := fmt.Errorf("outer: %w", WrapAuth(errors.New("401")))
	var app *AppError
	assert.True(t, errors.As(err, &app))
	assert.Equal(t, AuthErrorMessage, app.Message)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}

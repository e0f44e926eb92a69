package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestNotify_DropsDeliberateStops(t *testing.T) {
	errc := make(chan error, 1)

	notify(errc, nil)
	notify(errc, http.ErrServerClosed)
	notify(errc, grpc.ErrServerStopped)
	notify(errc, fmt.Errorf("serve: %w", http.ErrServerClosed))
	assert.Empty(t, errc)
}

func TestNotify_NeverBlocks(t *testing.T) {
	errc := make(chan error, 1)
	first := errors.New("listen tcp: address in use")

	notify(errc, first)
	notify(errc, errors.New("interrupt"))

	require.Len(t, errc, 1)
	assert.Same(t, first, <-errc)
}

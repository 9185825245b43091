package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDanglingRefs(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("pull failed")

	// without a transaction the delete already happened and must be reported
	assert.NoError(t, danglingRefs(ctx, false, "events.delete", boom))

	// inside one the error rolls the delete back
	assert.ErrorIs(t, danglingRefs(ctx, true, "events.delete", boom), boom)

	assert.NoError(t, danglingRefs(ctx, true, "events.delete", nil))
}

package objectstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-io/pipeline/internal/objectstore"
)

type codecFixture struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestEncodeDecodeJSONRoundTrips(t *testing.T) {
	in := codecFixture{Name: "manifest", Count: 3}

	body, err := objectstore.EncodeJSON(in)
	require.NoError(t, err)

	var out codecFixture
	require.NoError(t, objectstore.DecodeJSON(body, &out))
	assert.Equal(t, in, out)
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	var out codecFixture
	err := objectstore.DecodeJSON([]byte("{not json"), &out)
	assert.Error(t, err)
}

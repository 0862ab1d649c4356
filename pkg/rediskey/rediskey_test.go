package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSequenceKey(t *testing.T) {
	require.Equal(t, "seq:PO:260315", BuildSequenceKey("PO", "260315"))
}

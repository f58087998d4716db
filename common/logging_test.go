package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	for _, opts := range []*LoggingOpts{
		{},
		{Debug: true},
		{JSON: true, Service: "tlsn-demo", Version: "test"},
	} {
		log := SetupLogger(opts)
		require.NotNil(t, log)
		log.Debug("probe", "opts", opts)
	}
}

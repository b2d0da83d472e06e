package logger

import (
	"testing"

	"github.com/maxaizer/vacancy-dispatcher/internal/config"
	"github.com/maxaizer/vacancy-dispatcher/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func Test_PrometheusHook_ShouldCountByErrorType(t *testing.T) {
	hook := &prometheusHook{}
	before := testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues(ErrorTypeQueue))

	err := hook.Fire(&log.Entry{Data: log.Fields{ErrorTypeField: ErrorTypeQueue}})

	assert.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ErrorsCounter.WithLabelValues(ErrorTypeQueue)))
}

func Test_ToLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, toLevel(config.LevelDebug))
	assert.Equal(t, log.WarnLevel, toLevel(config.LevelWarning))
	assert.Equal(t, log.InfoLevel, toLevel("unknown"))
}

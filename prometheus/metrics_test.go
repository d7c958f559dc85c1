package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetServiceInfo(t *testing.T) {
	SetServiceInfo("1.2.0")
	SetServiceInfo("1.3.0")

	assert.Equal(t, 1, testutil.CollectAndCount(InfoGauge))
	assert.Equal(t, float64(1), testutil.ToFloat64(InfoGauge.WithLabelValues("1.3.0")))
}

func TestRecordTenantOperation(t *testing.T) {
	before := testutil.ToFloat64(TenantOperationCounter.WithLabelValues("renew", "ok"))
	RecordTenantOperation("renew", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(TenantOperationCounter.WithLabelValues("renew", "ok")))
}

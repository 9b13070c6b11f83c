package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sammcj/actorglue/logging"
)

func TestDetectorWarnsOncePerSlowCall(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d := newDetector(time.Minute, logging.Discard())
	d.now = func() time.Time { return clock }

	slowID := d.Track("build_apify_actor")
	clock = clock.Add(50 * time.Second)
	fastID := d.Track("query_dataset")
	assert.Equal(t, 2, d.InFlight())

	clock = clock.Add(20 * time.Second)
	assert.Equal(t, []string{"build_apify_actor"}, d.check())
	assert.Empty(t, d.check(), "already reported")

	d.Done(fastID)
	d.Done(slowID)
	assert.Zero(t, d.InFlight())
}

func TestDetectorCloseIsIdempotent(t *testing.T) {
	d := New(time.Millisecond, time.Hour, logging.Discard())
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestClosers_ReverseOrderOnce(t *testing.T) {
	var res closers
	var order []string
	res.add(func(context.Context) { order = append(order, "pool") })
	res.add(func(context.Context) { order = append(order, "redis") })
	res.add(func(context.Context) { order = append(order, "publisher") })
	res.add(func(context.Context) { order = append(order, "consumer") })

	res.closeAll(context.Background())
	assert.Equal(t, []string{"consumer", "publisher", "redis", "pool"}, order)

	res.closeAll(context.Background())
	assert.Len(t, order, 4)
}

func TestClosers_SchedulerFailureReleasesEverything(t *testing.T) {
	var res closers
	released := map[string]bool{}
	for _, name := range []string{"pool", "redis", "publisher", "consumer"} {
		name := name
		res.add(func(context.Context) { released[name] = true })
	}

	cfg := testConfig()
	cfg.Ranking.Cron = "not a cron"
	_, err := InitScheduler(zap.NewNop(), cfg, noopRanking{}, nil)
	if err != nil {
		res.closeAll(context.Background())
	}

	assert.Error(t, err)
	assert.Equal(t, map[string]bool{"pool": true, "redis": true, "publisher": true, "consumer": true}, released)
}

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/brain/pkg/config"
)

func TestNew_DefaultInterval(t *testing.T) {
	s := New(nil, nil, nil, nil)
	assert.Equal(t, 30*time.Second, s.interval)
}

func TestNew_ConfiguredInterval(t *testing.T) {
	cfg := &config.AnnouncementConfig{SchedulerInterval: 5 * time.Minute}
	s := New(nil, nil, cfg, nil)
	assert.Equal(t, 5*time.Minute, s.interval)
}

func TestNew_NilHolidayCheckDefaultsToNeverHoliday(t *testing.T) {
	s := New(nil, nil, nil, nil)
	assert.False(t, s.holidayCheck("tenant-1", time.Now()))
}

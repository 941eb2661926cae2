package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bmokshith2406/RCA-GENAI-MONITOR/pkg/models"
)

func TestInsertAndGet(t *testing.T) {
	s := NewStore(0)
	s.Insert(&models.SpikeIncident{ID: 1})
	s.Insert(&models.SpikeIncident{ID: 2})

	incident, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), incident.ID)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(2), latest.ID)
	assert.Len(t, s.List(), 2)
}

func TestRetentionEvictsOldest(t *testing.T) {
	s := NewStore(2)
	s.Insert(&models.SpikeIncident{ID: 1})
	s.Insert(&models.SpikeIncident{ID: 2})
	s.Insert(&models.SpikeIncident{ID: 3})

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())

	ids := make([]int64, 0, 2)
	for _, incident := range s.List() {
		ids = append(ids, incident.ID)
	}
	assert.Equal(t, []int64{2, 3}, ids)
}

func TestUpdateRCAAttachesReportByID(t *testing.T) {
	s := NewStore(0)
	s.Insert(&models.SpikeIncident{ID: 1})

	s.UpdateRCA(1, &models.RcaReport{CauseSummary: "cpu hog"})

	incident, ok := s.Get(1)
	require.True(t, ok)
	require.NotNil(t, incident.RCA())
	assert.Equal(t, "cpu hog", incident.RCA().CauseSummary)
}

func TestUpdateRCAOnEvictedIncidentIsNoop(t *testing.T) {
	s := NewStore(1)
	s.Insert(&models.SpikeIncident{ID: 1})
	s.Insert(&models.SpikeIncident{ID: 2})

	s.UpdateRCA(1, &models.RcaReport{CauseSummary: "too late"})
	_, ok := s.Get(1)
	assert.False(t, ok)
}

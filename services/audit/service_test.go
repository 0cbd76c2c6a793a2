package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/models"
)

// MockConsultationRepository is a mock implementation of ConsultationRepository
type MockConsultationRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.Consultation
}

func (m *MockConsultationRepository) Insert(ctx context.Context, c *models.Consultation) error {
	args := m.Called(ctx, c)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, c)
	return args.Error(0)
}

func (m *MockConsultationRepository) UpdateVoiceURL(ctx context.Context, id uuid.UUID, userID, audioURL string) error {
	args := m.Called(ctx, id, userID, audioURL)
	return args.Error(0)
}

func (m *MockConsultationRepository) Inserted() []*models.Consultation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Consultation, len(m.inserted))
	copy(out, m.inserted)
	return out
}

func newRecord(outcome models.ConsultationOutcome) *models.Consultation {
	c := models.NewConsultation("u1", "consultation-u1", "metformin dosing")
	c.Outcome = outcome
	return c
}

func TestConsultationTrail_StartStop(t *testing.T) {
	mockRepo := new(MockConsultationRepository)
	trail := NewConsultationTrail(mockRepo, zap.NewNop(), nil, Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, trail.Start())

	stats := trail.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	// Cannot start again
	assert.Error(t, trail.Start())

	require.NoError(t, trail.Stop(5*time.Second))
	assert.False(t, trail.GetStats().Started)

	// Stopping twice and logging after stop are rejected, not panics
	assert.ErrorIs(t, trail.Stop(time.Second), ErrNotRunning)
	assert.ErrorIs(t, trail.LogConsultation(newRecord(models.ConsultationOutcomeCompleted)), ErrNotRunning)
}

func TestConsultationTrail_NotStarted(t *testing.T) {
	trail := NewConsultationTrail(new(MockConsultationRepository), zap.NewNop(), nil, DefaultConfig())
	assert.ErrorIs(t, trail.LogConsultation(newRecord(models.ConsultationOutcomeCompleted)), ErrNotRunning)
	assert.ErrorIs(t, trail.Stop(time.Second), ErrNotRunning)
}

func TestConsultationTrail_DrainsOnStop(t *testing.T) {
	mockRepo := new(MockConsultationRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	trail := NewConsultationTrail(mockRepo, zap.NewNop(), nil, Config{BufferSize: 100, WorkerCount: 3})
	require.NoError(t, trail.Start())

	want := map[uuid.UUID]bool{}
	for i := 0; i < 25; i++ {
		c := newRecord(models.ConsultationOutcomeCompleted)
		want[c.ID] = true
		require.NoError(t, trail.LogConsultation(c))
	}

	require.NoError(t, trail.Stop(5*time.Second))

	inserted := mockRepo.Inserted()
	require.Len(t, inserted, 25)
	for _, c := range inserted {
		assert.True(t, want[c.ID])
	}
}

func TestConsultationTrail_ConcurrentLogging(t *testing.T) {
	mockRepo := new(MockConsultationRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	trail := NewConsultationTrail(mockRepo, zap.NewNop(), nil, Config{BufferSize: 1000, WorkerCount: 4})
	require.NoError(t, trail.Start())

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = trail.LogConsultation(newRecord(models.ConsultationOutcomeEmergency))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, trail.Stop(5*time.Second))
	assert.Len(t, mockRepo.Inserted(), 200)
}

func TestConsultationTrail_InsertErrorIsLogged(t *testing.T) {
	mockRepo := new(MockConsultationRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("relation does not exist"))

	trail := NewConsultationTrail(mockRepo, zap.NewNop(), nil, Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, trail.Start())
	require.NoError(t, trail.LogConsultation(newRecord(models.ConsultationOutcomeFailed)))
	require.NoError(t, trail.Stop(5*time.Second))

	mockRepo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestConsultationTrail_BufferFull(t *testing.T) {
	mockRepo := new(MockConsultationRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})

	metrics := observability.NewMetrics()
	trail := NewConsultationTrail(mockRepo, zap.NewNop(), metrics, Config{BufferSize: 5, WorkerCount: 1})
	require.NoError(t, trail.Start())

	dropped := 0
	for i := 0; i < 20; i++ {
		if err := trail.LogConsultation(newRecord(models.ConsultationOutcomeCompleted)); errors.Is(err, ErrBufferFull) {
			dropped++
		}
	}

	// one record held by the blocked worker plus five buffered
	assert.GreaterOrEqual(t, dropped, 14)
	assert.Equal(t, float64(dropped), counterValue(t, metrics, "medrag_audit_events_dropped_total"))

	close(release)
	require.NoError(t, trail.Stop(5*time.Second))
}

func TestConsultationTrail_StopTimeout(t *testing.T) {
	mockRepo := new(MockConsultationRepository)
	release := make(chan struct{})
	defer close(release)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})

	trail := NewConsultationTrail(mockRepo, zap.NewNop(), nil, Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, trail.Start())
	require.NoError(t, trail.LogConsultation(newRecord(models.ConsultationOutcomeCompleted)))

	err := trail.Stop(50 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func counterValue(t *testing.T, m *observability.Metrics, name string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.NotEmpty(t, f.GetMetric())
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

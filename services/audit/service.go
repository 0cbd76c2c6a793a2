package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/models"
	"github.com/upb/medrag/repositories"
)

var (
	// ErrNotRunning is returned when logging to a service that is not started or already stopped
	ErrNotRunning = errors.New("audit service not running")

	// ErrBufferFull is returned when an event is dropped
	ErrBufferFull = errors.New("audit event buffer full")
)

// ConsultationTrail persists consultation records asynchronously
type ConsultationTrail struct {
	repo        repositories.ConsultationRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	eventChan   chan *models.Consultation
	workerCount int
	bufferSize  int
	timeout     time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the ConsultationTrail
type Config struct {
	BufferSize   int // Size of the event buffer channel
	WorkerCount  int // Number of concurrent workers
	WriteTimeout time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewConsultationTrail creates a trail. metrics may be nil.
func NewConsultationTrail(repo repositories.ConsultationRepository, logger *zap.Logger, metrics *observability.Metrics, config Config) *ConsultationTrail {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ConsultationTrail{
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
		eventChan:   make(chan *models.Consultation, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.WriteTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *ConsultationTrail) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started consultation audit trail",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting records and waits for queued ones to be written
func (s *ConsultationTrail) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.stopped = true
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping consultation audit trail", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("consultation audit trail stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogConsultation queues a record without blocking. When the buffer is
// full the record is dropped.
func (s *ConsultationTrail) LogConsultation(c *models.Consultation) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotRunning
	}

	select {
	case s.eventChan <- c:
		return nil
	default:
		s.metrics.IncAuditDropped()
		s.logger.Warn("audit event channel full, dropping consultation record",
			zap.String("consultation_id", c.ID.String()),
			zap.String("outcome", string(c.Outcome)))
		return ErrBufferFull
	}
}

func (s *ConsultationTrail) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for c := range s.eventChan {
		if err := s.write(c); err != nil {
			s.logger.Error("failed to write consultation record",
				zap.Int("worker_id", id),
				zap.String("consultation_id", c.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *ConsultationTrail) write(c *models.Consultation) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if err := s.repo.Insert(ctx, c); err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}
	return nil
}

// GetStats returns statistics about the trail
func (s *ConsultationTrail) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit trail statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

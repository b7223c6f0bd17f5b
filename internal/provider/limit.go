package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pharmacy-agent/internal/agent"
)

// Limited caps the number of upstream streams open at once. A slot is held
// from Stream until the returned stream is closed.
type Limited struct {
	next     agent.Provider
	rateChan chan struct{} // Token bucket
	wait     time.Duration
}

func Limit(next agent.Provider, concurrent int) *Limited {
	if concurrent <= 0 {
		concurrent = 1
	}
	rateChan := make(chan struct{}, concurrent)
	for i := 0; i < concurrent; i++ {
		rateChan <- struct{}{}
	}
	return &Limited{next: next, rateChan: rateChan, wait: 5 * time.Minute}
}

func (l *Limited) Stream(ctx context.Context, req agent.CompletionRequest) (agent.ChunkStream, error) {
	if err := l.acquireRate(ctx); err != nil {
		return nil, err
	}
	s, err := l.next.Stream(ctx, req)
	if err != nil {
		l.releaseRate()
		return nil, err
	}
	return &limitedStream{ChunkStream: s, release: l.releaseRate}, nil
}

// Available reports how many slots are free.
func (l *Limited) Available() int { return len(l.rateChan) }

// acquireRate blocks until a rate slot is available
func (l *Limited) acquireRate(ctx context.Context) error {
	select {
	case <-l.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.wait):
		return fmt.Errorf("timeout waiting for upstream rate slot")
	}
}

func (l *Limited) releaseRate() {
	l.rateChan <- struct{}{}
}

type limitedStream struct {
	agent.ChunkStream
	once    sync.Once
	release func()
}

func (s *limitedStream) Close() error {
	err := s.ChunkStream.Close()
	s.once.Do(s.release)
	return err
}

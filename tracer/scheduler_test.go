package tracer

import (
	"context"
	"testing"
)

func TestPerfectSchedulerSpeedEstimates(t *testing.T) {
	type spec struct {
		speed1   float32
		speed2   float32
		frameH   uint32
		expRows1 uint32
		expRows2 uint32
	}
	specs := []spec{
		{1, 2, 10, 4, 6},
		{2, 1, 10, 7, 3},
		{1, 1000, 10, 1, 9},
		// Every tracer gets a row even if the frame is too short
		{1, 1, 1, 1, 1},
	}

	for index, s := range specs {
		tracers := []Tracer{makeMockTracer("mock-1", s.speed1), makeMockTracer("mock-2", s.speed2)}

		blockAssignment := NewPerfectScheduler().Schedule(tracers, s.frameH)

		if blockAssignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected tracer 0 to be assigned %d rows; got %d", index, s.expRows1, blockAssignment[0])
		}

		if blockAssignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected tracer 1 to be assigned %d rows; got %d", index, s.expRows2, blockAssignment[1])
		}
	}
}

func TestPerfectScheduler(t *testing.T) {
	type spec struct {
		frameH   uint32
		bTime1   int64
		bTime2   int64
		expRows1 uint32
		expRows2 uint32
	}
	specs := []spec{
		// First call splits rows by speed estimate
		{10, 1, 5, 5, 5},
		// Second call should use the block times to assign rows
		{10, 1, 5, 9, 1},
		// This time tracer 2 performed much better
		{10, 5, 1, 7, 3},
		// Missing feedback falls back to the speed estimates
		{10, 0, 0, 5, 5},
	}

	// Tracers have same speed
	tr1 := makeMockTracer("mock-1", 1)
	tr2 := makeMockTracer("mock-2", 1)
	tracers := []Tracer{tr1, tr2}

	sch := NewPerfectScheduler()
	for index, s := range specs {
		tr1.stats.BlockTime = s.bTime1
		tr2.stats.BlockTime = s.bTime2

		blockAssignment := sch.Schedule(tracers, s.frameH)

		if blockAssignment[0] != s.expRows1 {
			t.Fatalf("[spec %d] expected tracer 0 to be assigned %d rows; got %d", index, s.expRows1, blockAssignment[0])
		}

		if blockAssignment[1] != s.expRows2 {
			t.Fatalf("[spec %d] expected tracer 1 to be assigned %d rows; got %d", index, s.expRows2, blockAssignment[1])
		}

		tr1.stats.BlockH = blockAssignment[0]
		tr2.stats.BlockH = blockAssignment[1]
	}
}

func TestPerfectSchedulerTracerCountChange(t *testing.T) {
	sch := NewPerfectScheduler()
	tracers := []Tracer{makeMockTracer("mock-1", 1), makeMockTracer("mock-2", 1)}
	sch.Schedule(tracers, 10)

	tracers = append(tracers, makeMockTracer("mock-3", 2))
	blockAssignment := sch.Schedule(tracers, 8)
	exp := []uint32{2, 2, 4}
	for idx, rows := range exp {
		if blockAssignment[idx] != rows {
			t.Fatalf("expected assignment %v; got %v", exp, blockAssignment)
		}
	}
}

type mockTracer struct {
	id    string
	speed float32
	stats Stats
}

func makeMockTracer(id string, speed float32) *mockTracer {
	return &mockTracer{
		id:    id,
		speed: speed,
	}
}

func (mt *mockTracer) ID() string {
	return mt.id
}

func (mt *mockTracer) SpeedEstimate() float32 {
	return mt.speed
}

func (mt *mockTracer) Trace(_ context.Context, req BlockRequest) error {
	mt.stats.BlockH = req.BlockH
	return nil
}

func (mt *mockTracer) Stats() *Stats {
	return &mt.stats
}

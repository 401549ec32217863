package scheduler

import "testing"

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	// Should add a valid cron job without error
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
}

func TestSchedulerAcceptsDescriptors(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("@every 45s", func() {}); err != nil {
		t.Errorf("Expected descriptor expression to be accepted, got %v", err)
	}
}

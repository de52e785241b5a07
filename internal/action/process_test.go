package action

import (
	"context"
	"testing"
	"time"
)

// TestProcessManagerKillAll verifies that KillAll terminates tracked processes
// and their children.
func TestProcessManagerKillAll(t *testing.T) {
	pm := NewProcessManager()

	// The shell's child sleep shares its process group.
	cmd := newCommand(context.Background(), "sh", "-c", "sleep 60 & wait")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start subprocess: %v", err)
	}
	pm.Track(cmd)

	if count := pm.Count(); count != 1 {
		t.Errorf("Expected 1 tracked process, got %d", count)
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected process to be killed (non-zero exit), got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not terminate after KillAll()")
	}

	// KillAll doesn't untrack; runCommand does that after Wait.
	pm.Untrack(cmd)
	if count := pm.Count(); count != 0 {
		t.Errorf("Expected 0 tracked processes, got %d", count)
	}
}

func TestProcessManagerIgnoresUnstarted(t *testing.T) {
	pm := NewProcessManager()
	cmd := newCommand(context.Background(), "true")

	pm.Track(cmd)
	if pm.Count() != 0 {
		t.Error("an unstarted command should not be tracked")
	}
	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll on empty manager: %v", err)
	}
}

func TestRunCommandTracksWhileRunning(t *testing.T) {
	pm := NewProcessManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		status, _ := runCommand(ctx, pm, []string{"sleep", "30"})
		done <- status
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pm.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("process was never tracked")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}

	select {
	case status := <-done:
		if status != -1 {
			t.Errorf("status = %d, want -1 for a killed process", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runCommand did not return after KillAll")
	}
	if pm.Count() != 0 {
		t.Errorf("process still tracked after exit")
	}
}
